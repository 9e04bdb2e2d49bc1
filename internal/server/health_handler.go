package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github/martinmaurice/limitd/internal/server/middleware"
)

func HealthHandler(c *gin.Context) {
	reqArrivalTime, exists := c.Get(middleware.ReqArrivalTimeContextValueKey)
	if exists {
		queueTime := time.Since(reqArrivalTime.(time.Time)).Microseconds()
		slog.Debug("health check queue time", "queueTimeMicroseconds", queueTime)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
