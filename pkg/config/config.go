package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"

	"github.com/spf13/viper"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

var (
	FileReadErr   = errors.New("could not read config file")
	ValidationErr = errors.New("invalid config")
)

const (
	defaultQuotaAlertThreshold = 0.1
	defaultAnalyticsTopN       = 10
	defaultMetricsPath         = "/metrics"
)

type rawLimit struct {
	Requests int
	Window   int
}

type rawConfig struct {
	DefaultAlgorithm    string              `mapstructure:"default_algorithm"`
	QuotaAlertThreshold *float64            `mapstructure:"quota_alert_threshold"`
	DefaultLimits       map[string]rawLimit `mapstructure:"default_limits"`
	FallbackLimit       *rawLimit           `mapstructure:"fallback_limit"`
	Analytics           *struct {
		TopN int `mapstructure:"top_n"`
	}
	Metrics *struct {
		Enabled *bool
		Path    string
	}
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AnalyticsConfig struct {
	TopN int
}

// Config carries the service defaults: the algorithm applied when a check
// does not name one, the per-scope default limits seeding the limiter, and
// the alerting/reporting knobs. Everything is optional in the file; the
// built-in values match the limiter's own defaults.
type Config struct {
	DefaultAlgorithm    enum.Algorithm
	QuotaAlertThreshold float64
	DefaultLimits       map[enum.Scope]rate_limiter.Config
	FallbackLimit       rate_limiter.Config
	Analytics           AnalyticsConfig
	Metrics             MetricsConfig
}

func parseRawConfig(rc *rawConfig) (*Config, error) {
	cfg := &Config{
		DefaultAlgorithm:    enum.SlidingWindow,
		QuotaAlertThreshold: defaultQuotaAlertThreshold,
		DefaultLimits:       rate_limiter.DefaultLimits(),
		FallbackLimit:       rate_limiter.DefaultFallbackLimit,
		Analytics:           AnalyticsConfig{TopN: defaultAnalyticsTopN},
		Metrics:             MetricsConfig{Enabled: true, Path: defaultMetricsPath},
	}

	if rc.DefaultAlgorithm != "" {
		algorithm, err := enum.ParseAlgorithm(rc.DefaultAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ValidationErr, err)
		}
		cfg.DefaultAlgorithm = algorithm
	}

	if rc.QuotaAlertThreshold != nil {
		if *rc.QuotaAlertThreshold < 0 || *rc.QuotaAlertThreshold >= 1 {
			return nil, fmt.Errorf("%w: quota_alert_threshold must be in [0, 1)", ValidationErr)
		}
		cfg.QuotaAlertThreshold = *rc.QuotaAlertThreshold
	}

	for name, limit := range rc.DefaultLimits {
		scope, err := enum.ParseScope(name)
		if err != nil {
			return nil, fmt.Errorf("%w: default_limits: %v", ValidationErr, err)
		}
		parsed, err := parseLimit(name, limit)
		if err != nil {
			return nil, err
		}
		cfg.DefaultLimits[scope] = parsed
	}

	if rc.FallbackLimit != nil {
		parsed, err := parseLimit("fallback_limit", *rc.FallbackLimit)
		if err != nil {
			return nil, err
		}
		cfg.FallbackLimit = parsed
	}

	if rc.Analytics != nil {
		if rc.Analytics.TopN <= 0 {
			return nil, fmt.Errorf("%w: analytics top_n must be greater than zero", ValidationErr)
		}
		cfg.Analytics.TopN = rc.Analytics.TopN
	}

	if rc.Metrics != nil {
		if rc.Metrics.Path == "" {
			return nil, fmt.Errorf("%w: metrics path could not be empty", ValidationErr)
		}
		cfg.Metrics.Path = rc.Metrics.Path
		if rc.Metrics.Enabled != nil {
			cfg.Metrics.Enabled = *rc.Metrics.Enabled
		}
	}

	return cfg, nil
}

func parseLimit(name string, limit rawLimit) (rate_limiter.Config, error) {
	parsed := rate_limiter.Config{Requests: limit.Requests, Window: limit.Window}
	if err := parsed.Validate(); err != nil {
		return rate_limiter.Config{}, fmt.Errorf("%w: %s: %v", ValidationErr, name, err)
	}
	return parsed, nil
}

func newConfig(configFile string) (*Config, error) {
	slog.Info("loading config", "file", configFile)

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", FileReadErr, err)
	}

	var rc rawConfig
	if err := v.Unmarshal(&rc); err != nil {
		return nil, fmt.Errorf("%w: %v", ValidationErr, err)
	}

	return parseRawConfig(&rc)
}

// Load reads and validates the YAML config file at the given path.
func Load(configFile string) (*Config, error) {
	return newConfig(configFile)
}

var (
	once           sync.Once
	configInstance *Config
)

func resetConfigForTests() {
	once = sync.Once{}
	configInstance = nil
}

func GetConfig(configFile string) *Config {
	once.Do(func() {
		var err error
		configInstance, err = newConfig(configFile)
		if err != nil {
			log.Fatalf("Could not create new config err: %v", err)
		}
	})
	return configInstance
}
