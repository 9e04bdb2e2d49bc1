package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github/martinmaurice/limitd/internal/server/middleware"
	"github/martinmaurice/limitd/pkg/config"
	"github/martinmaurice/limitd/pkg/env"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

const DefaultGracefulShutdownTimeout = 10 * time.Second

// Servicer is everything the HTTP surface needs from the rate limiter.
type Servicer interface {
	checkServicer
	statusServicer
	adminServicer
	analyticsServicer
}

type Config struct {
	port                  string
	readTimeoutInSeconds  time.Duration
	writeTimeoutInSeconds time.Duration
	maxHeaderBytes        int
	handler               *gin.Engine
	servicer              Servicer
	cfg                   *config.Config
	adminKeys             []string
	disableSelfRateLimit  bool
}

type Option func(config *Config)

// WithDisableSelfRateLimit turns off the per-IP limiting of the service's
// own API, useful for local development and load testing.
func WithDisableSelfRateLimit(value bool) Option {
	return func(config *Config) {
		config.disableSelfRateLimit = value
	}
}

func NewServer(servicer Servicer, cfg *config.Config, opts ...Option) *Config {
	envObj := env.GetEnv()
	c := &Config{
		port:                  envObj.ServerPort,
		readTimeoutInSeconds:  envObj.ServerReadTimeoutInSecond,
		writeTimeoutInSeconds: envObj.ServerWriteTimeoutInSecond,
		maxHeaderBytes:        envObj.ServerMaxHeaderBytes,
		handler:               gin.Default(),
		servicer:              servicer,
		cfg:                   cfg,
		adminKeys:             envObj.AdminApiKeys,
		disableSelfRateLimit:  false,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (s *Config) registerRoutes() {
	s.handler.Use(middleware.QueueTimeMiddleware)
	s.handler.Use(middleware.AuthenticationMiddleware(s.adminKeys))

	if !s.disableSelfRateLimit {
		s.handler.Use(middleware.RateLimitByIPMiddleware(s.servicer, s.cfg.DefaultAlgorithm))
	}

	s.handler.POST("/check", CheckHandler(s.servicer, s.cfg.DefaultAlgorithm))
	s.handler.GET("/status", StatusHandler(s.servicer))
	s.handler.DELETE("/reset", ResetHandler(s.servicer))
	s.handler.POST("/configure", ConfigureHandler(s.servicer))
	s.handler.POST("/whitelist", AddToWhitelistHandler(s.servicer))
	s.handler.DELETE("/whitelist", RemoveFromWhitelistHandler(s.servicer))
	s.handler.POST("/blacklist", AddToBlacklistHandler(s.servicer))
	s.handler.DELETE("/blacklist", RemoveFromBlacklistHandler(s.servicer))
	s.handler.GET("/analytics", AnalyticsHandler(s.servicer, s.cfg.Analytics.TopN))
	s.handler.GET("/health", HealthHandler)

	if s.cfg.Metrics.Enabled {
		s.handler.GET(s.cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Config) Run() {
	s.registerRoutes()

	srv := &http.Server{
		Addr:           s.port,
		Handler:        s.handler,
		ReadTimeout:    s.readTimeoutInSeconds,
		WriteTimeout:   s.writeTimeoutInSeconds,
		MaxHeaderBytes: s.maxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop // block until interrupt signal
	slog.Info("shutting down the server...")

	ctx, cancel := context.WithTimeout(context.Background(), DefaultGracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown :%v", err)
	}

	slog.Info("Server exited gracefully")
}

// interface check: the limiter serves the whole HTTP surface
var _ Servicer = (*rate_limiter.Limiter)(nil)
