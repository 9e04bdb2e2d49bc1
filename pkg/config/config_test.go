package config

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/martinmaurice/limitd/pkg/enum"
	"github/martinmaurice/limitd/pkg/rate_limiter"
)

func writeConfigFile(t *testing.T, content string) string {
	f, err := os.CreateTemp(t.TempDir(), "test_config_*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestGetConfig_IsSingletonAndConcurrentSafe(t *testing.T) {
	configFile := writeConfigFile(t, "default_algorithm: token_bucket\n")
	goroutine := 100

	wg := sync.WaitGroup{}
	instances := make(chan *Config, goroutine)

	for i := 0; i < goroutine; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instances <- GetConfig(configFile)
		}()
	}

	wg.Wait()
	close(instances)

	var first *Config
	for instance := range instances {
		if first == nil {
			first = instance
			continue
		}
		require.Same(t, first, instance)
	}

	resetConfigForTests()
}

func TestNewConfig(t *testing.T) {
	var (
		configOk = `
default_algorithm: token_bucket
quota_alert_threshold: 0.2

default_limits:
  ip:
    requests: 30
    window: 60
  user:
    requests: 500
    window: 1800

fallback_limit:
  requests: 50
  window: 600

analytics:
  top_n: 5

metrics:
  enabled: false
  path: "/the-metrics"
`
		configUnknownAlgorithm = `
default_algorithm: round_robin
`
		configUnknownScope = `
default_limits:
  tenant:
    requests: 10
    window: 60
`
		configZeroWindow = `
default_limits:
  ip:
    requests: 10
    window: 0
`
		configBadThreshold = `
quota_alert_threshold: 1.5
`
		configEmptyMetricsPath = `
metrics:
  enabled: true
  path: ""
`
	)

	t.Run("config file path is wrong", func(t *testing.T) {
		_, err := newConfig("wrong_file_path.yaml")
		require.ErrorIs(t, err, FileReadErr)
	})

	t.Run("empty config keeps built-in defaults", func(t *testing.T) {
		cfg, err := newConfig(writeConfigFile(t, "{}\n"))
		require.NoError(t, err)
		assert.Equal(t, enum.SlidingWindow, cfg.DefaultAlgorithm)
		assert.Equal(t, 0.1, cfg.QuotaAlertThreshold)
		assert.Equal(t, rate_limiter.DefaultLimits(), cfg.DefaultLimits)
		assert.Equal(t, rate_limiter.DefaultFallbackLimit, cfg.FallbackLimit)
		assert.Equal(t, AnalyticsConfig{TopN: 10}, cfg.Analytics)
		assert.Equal(t, MetricsConfig{Enabled: true, Path: "/metrics"}, cfg.Metrics)
	})

	t.Run("full config overrides defaults", func(t *testing.T) {
		cfg, err := newConfig(writeConfigFile(t, configOk))
		require.NoError(t, err)

		assert.Equal(t, enum.TokenBucket, cfg.DefaultAlgorithm)
		assert.Equal(t, 0.2, cfg.QuotaAlertThreshold)
		assert.Equal(t, rate_limiter.Config{Requests: 30, Window: 60}, cfg.DefaultLimits[enum.ScopeIP])
		assert.Equal(t, rate_limiter.Config{Requests: 500, Window: 1800}, cfg.DefaultLimits[enum.ScopeUser])
		// untouched scopes keep the built-in defaults
		assert.Equal(t, rate_limiter.Config{Requests: 10000, Window: 3600}, cfg.DefaultLimits[enum.ScopeGlobal])
		assert.Equal(t, rate_limiter.Config{Requests: 50, Window: 600}, cfg.FallbackLimit)
		assert.Equal(t, AnalyticsConfig{TopN: 5}, cfg.Analytics)
		assert.Equal(t, MetricsConfig{Enabled: false, Path: "/the-metrics"}, cfg.Metrics)
	})

	invalid := []struct {
		name    string
		content string
	}{
		{"unknown algorithm", configUnknownAlgorithm},
		{"unknown scope", configUnknownScope},
		{"zero window", configZeroWindow},
		{"threshold out of range", configBadThreshold},
		{"empty metrics path", configEmptyMetricsPath},
	}

	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newConfig(writeConfigFile(t, tt.content))
			require.ErrorIs(t, err, ValidationErr)
		})
	}
}
