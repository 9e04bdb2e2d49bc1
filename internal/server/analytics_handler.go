package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

type analyticsServicer interface {
	GetAnalytics(ctx context.Context, timeRange string, scope enum.Scope, topN int) (rate_limiter.Analytics, error)
}

func AnalyticsHandler(s analyticsServicer, defaultTopN int) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		timeRange := ctx.DefaultQuery("time_range", "1h")

		var scope enum.Scope
		if raw := ctx.Query("scope"); raw != "" {
			parsed, err := enum.ParseScope(raw)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scope = parsed
		}

		topN := defaultTopN
		if raw := ctx.Query("top_n"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "top_n must be a positive integer"})
				return
			}
			topN = parsed
		}

		report, err := s.GetAnalytics(ctx.Request.Context(), timeRange, scope, topN)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, report)
	}
}
