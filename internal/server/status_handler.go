package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

type (
	statusServicer interface {
		Status(ctx context.Context, identifier string, scope enum.Scope, endpoint string) (rate_limiter.Status, error)
	}
	statusResponseDTO struct {
		RequestsMade      int   `json:"requests_made"`
		RequestsRemaining int   `json:"requests_remaining"`
		ResetAt           int64 `json:"reset_at,omitempty"`
		WindowStart       int64 `json:"window_start,omitempty"`
		Requests          int   `json:"requests"`
		Window            int   `json:"window"`
	}
)

func StatusHandler(s statusServicer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
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

		status, err := s.Status(ctx.Request.Context(), identifier, scope, ctx.Query("endpoint"))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		respDTO := statusResponseDTO{
			RequestsMade:      status.RequestsMade,
			RequestsRemaining: status.RequestsRemaining,
			Requests:          status.Config.Requests,
			Window:            status.Config.Window,
		}
		if !status.ResetAt.IsZero() {
			respDTO.ResetAt = status.ResetAt.Unix()
		}
		if !status.WindowStart.IsZero() {
			respDTO.WindowStart = status.WindowStart.Unix()
		}
		ctx.JSON(http.StatusOK, respDTO)
	}
}
