package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rate_limit_checks_total",
	Help: "Rate limit checks served over the API, by scope and result.",
}, []string{"scope", "result"})

type (
	checkServicer interface {
		Check(ctx context.Context, req rate_limiter.CheckRequest) (rate_limiter.Decision, error)
	}
	checkRequestDTO struct {
		Identifier string `json:"identifier" binding:"required"`
		Scope      string `json:"scope" binding:"required"`
		Endpoint   string `json:"endpoint"`
		Algorithm  string `json:"algorithm"`
		Requests   int    `json:"requests"`
		Window     int    `json:"window"`
	}
	checkResponseDTO struct {
		Allowed     bool   `json:"allowed"`
		Remaining   int    `json:"remaining"`
		ResetAt     int64  `json:"reset_at,omitempty"`
		RetryAfter  int64  `json:"retry_after,omitempty"`
		Whitelisted bool   `json:"whitelisted,omitempty"`
		Reason      string `json:"reason,omitempty"`
		Error       string `json:"error,omitempty"`
	}
)

func CheckHandler(s checkServicer, defaultAlgorithm enum.Algorithm) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var reqDTO checkRequestDTO
		if err := ctx.ShouldBind(&reqDTO); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		scope, err := enum.ParseScope(reqDTO.Scope)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		algorithm := defaultAlgorithm
		if reqDTO.Algorithm != "" {
			if algorithm, err = enum.ParseAlgorithm(reqDTO.Algorithm); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		req := rate_limiter.CheckRequest{
			Identifier: reqDTO.Identifier,
			Scope:      scope,
			Endpoint:   reqDTO.Endpoint,
			Algorithm:  algorithm,
		}
		if reqDTO.Requests > 0 && reqDTO.Window > 0 {
			req.CustomLimit = &rate_limiter.Config{Requests: reqDTO.Requests, Window: reqDTO.Window}
		}

		decision, err := s.Check(ctx.Request.Context(), req)

		var exceeded *rate_limiter.ExceededError
		if errors.As(err, &exceeded) {
			checksTotal.WithLabelValues(scope.String(), "denied").Inc()
			status := http.StatusTooManyRequests
			if exceeded.Reason == rate_limiter.ReasonBlacklisted {
				status = http.StatusForbidden
			}
			respDTO := checkResponseDTO{
				Reason:     exceeded.Reason,
				RetryAfter: int64(exceeded.RetryAfter.Seconds()),
			}
			if !exceeded.ResetAt.IsZero() {
				respDTO.ResetAt = exceeded.ResetAt.Unix()
			}
			ctx.JSON(status, respDTO)
			return
		}

		checksTotal.WithLabelValues(scope.String(), "allowed").Inc()
		respDTO := checkResponseDTO{
			Allowed:     decision.Allowed,
			Remaining:   decision.Remaining,
			Whitelisted: decision.Whitelisted,
			Error:       decision.Err,
		}
		if !decision.ResetAt.IsZero() {
			respDTO.ResetAt = decision.ResetAt.Unix()
		}
		ctx.JSON(http.StatusOK, respDTO)
	}
}
