package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/limitd/internal/server/middleware"
	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

type adminServicer interface {
	Reset(ctx context.Context, identifier string, scope enum.Scope, endpoint, requesterID string) error
	UpdateConfig(ctx context.Context, scope enum.Scope, cfg rate_limiter.Config, endpoint, requesterID string) error
	AddToWhitelist(ctx context.Context, p rate_limiter.ListParams) error
	AddToBlacklist(ctx context.Context, p rate_limiter.ListParams) error
	RemoveFromWhitelist(ctx context.Context, identifier string, scope enum.Scope, requesterID string) error
	RemoveFromBlacklist(ctx context.Context, identifier string, scope enum.Scope, requesterID string) error
}

func writeAdminError(ctx *gin.Context, err error) {
	var permission *rate_limiter.PermissionError
	var config *rate_limiter.ConfigError

	switch {
	case errors.As(err, &permission):
		ctx.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &config):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// requesterID aborts with 401 when no admin API key was presented.
func requesterID(ctx *gin.Context) (string, bool) {
	id := middleware.AdminID(ctx)
	if id == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin API key required"})
		return "", false
	}
	return id, true
}

type resetRequestDTO struct {
	Identifier string `json:"identifier" binding:"required"`
	Scope      string `json:"scope" binding:"required"`
	Endpoint   string `json:"endpoint"`
}

func ResetHandler(s adminServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := requesterID(ctx)
		if !ok {
			return
		}

		var reqDTO resetRequestDTO
		if err := ctx.ShouldBind(&reqDTO); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		scope, err := enum.ParseScope(reqDTO.Scope)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.Reset(ctx.Request.Context(), reqDTO.Identifier, scope, reqDTO.Endpoint, id); err != nil {
			writeAdminError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type configureRequestDTO struct {
	Scope    string `json:"scope" binding:"required"`
	Endpoint string `json:"endpoint"`
	Requests int    `json:"requests" binding:"required"`
	Window   int    `json:"window" binding:"required"`
}

func ConfigureHandler(s adminServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := requesterID(ctx)
		if !ok {
			return
		}

		var reqDTO configureRequestDTO
		if err := ctx.ShouldBind(&reqDTO); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		scope, err := enum.ParseScope(reqDTO.Scope)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cfg := rate_limiter.Config{Requests: reqDTO.Requests, Window: reqDTO.Window}
		if err := s.UpdateConfig(ctx.Request.Context(), scope, cfg, reqDTO.Endpoint, id); err != nil {
			writeAdminError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type listRequestDTO struct {
	Identifier string `json:"identifier" binding:"required"`
	Scope      string `json:"scope" binding:"required"`
	Reason     string `json:"reason"`
	ExpiresAt  int64  `json:"expires_at"` // unix seconds, 0 means never
}

func addToListHandler(add func(ctx context.Context, p rate_limiter.ListParams) error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := requesterID(ctx)
		if !ok {
			return
		}

		var reqDTO listRequestDTO
		if err := ctx.ShouldBind(&reqDTO); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		scope, err := enum.ParseScope(reqDTO.Scope)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		p := rate_limiter.ListParams{
			Identifier:  reqDTO.Identifier,
			Scope:       scope,
			Reason:      reqDTO.Reason,
			RequesterID: id,
		}
		if reqDTO.ExpiresAt > 0 {
			expiresAt := time.Unix(reqDTO.ExpiresAt, 0)
			p.ExpiresAt = &expiresAt
		}

		if err := add(ctx.Request.Context(), p); err != nil {
			writeAdminError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func removeFromListHandler(remove func(ctx context.Context, identifier string, scope enum.Scope, requesterID string) error) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := requesterID(ctx)
		if !ok {
			return
		}

		identifier := ctx.Query("identifier")
		if identifier == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "identifier is required"})
			return
		}
		scope, err := enum.ParseScope(ctx.Query("scope"))
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := remove(ctx.Request.Context(), identifier, scope, id); err != nil {
			writeAdminError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func AddToWhitelistHandler(s adminServicer) gin.HandlerFunc {
	return addToListHandler(s.AddToWhitelist)
}

func AddToBlacklistHandler(s adminServicer) gin.HandlerFunc {
	return addToListHandler(s.AddToBlacklist)
}

func RemoveFromWhitelistHandler(s adminServicer) gin.HandlerFunc {
	return removeFromListHandler(s.RemoveFromWhitelist)
}

func RemoveFromBlacklistHandler(s adminServicer) gin.HandlerFunc {
	return removeFromListHandler(s.RemoveFromBlacklist)
}
