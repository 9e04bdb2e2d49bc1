package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"slices"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github/martinmaurice/limitd/internal/server"
	"github/martinmaurice/limitd/pkg/config"
	"github/martinmaurice/limitd/pkg/env"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

var (
	envFilePath          string
	memoryStorage        bool
	disableSelfRateLimit bool
)

func init() {
	flag.StringVar(&envFilePath, "env", "", "Enter the env file path you want to load if any")
	flag.BoolVar(&memoryStorage, "memoryStorage", false, "Use the in-process storage instead of redis (single instance only)")
	flag.BoolVar(&disableSelfRateLimit, "disableSelfRateLimit", false, "Disable per-IP rate limiting of the API itself")
}

func newStorage(envObj *env.Specification) (rate_limiter.Storer, error) {
	if memoryStorage {
		slog.Warn("using in-process storage, state is not shared across instances")
		return rate_limiter.NewMemoryStorage(), nil
	}
	return rate_limiter.NewRedisStorage(rate_limiter.RedisConfig{
		Addr:     envObj.RedisAddr,
		Password: envObj.RedisPassword,
		DB:       envObj.RedisDb,
		PoolSize: envObj.RedisPoolSize,
	})
}

func main() {
	slog.Info("limitd starting")

	flag.Parse()

	if envFilePath != "" {
		slog.Info(fmt.Sprintf("loading env file %s", envFilePath))
		if err := godotenv.Load(envFilePath); err != nil {
			panic(fmt.Errorf("could not be able to load the env file: %v", err))
		}
	}

	envObj := env.GetEnv()
	slog.Info("env loaded", "version", envObj.Version, "env", envObj.Env)

	cfg := config.GetConfig(envObj.ConfigFile)

	storage, err := newStorage(envObj)
	if err != nil {
		log.Fatalf("Could not create storage: %v", err)
	}

	sinks := rate_limiter.MultiSink{rate_limiter.LogSink{}}
	if cfg.Metrics.Enabled {
		sinks = append(sinks, rate_limiter.NewMetricsSink(prometheus.DefaultRegisterer))
	}
	asyncSink := rate_limiter.NewAsyncSink(sinks, envObj.EventBufferSize)
	defer asyncSink.Close()

	adminKeys := envObj.AdminApiKeys
	limiter := rate_limiter.New(storage, asyncSink,
		rate_limiter.WithDefaults(cfg.DefaultLimits, cfg.FallbackLimit),
		rate_limiter.WithQuotaAlertRatio(cfg.QuotaAlertThreshold),
		rate_limiter.WithAdminChecker(rate_limiter.AdminFunc(func(ctx context.Context, userID string) (bool, error) {
			return slices.Contains(adminKeys, userID), nil
		})),
	)

	srv := server.NewServer(limiter, cfg, server.WithDisableSelfRateLimit(disableSelfRateLimit))
	srv.Run()
}
