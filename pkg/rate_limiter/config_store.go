package rate_limiter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github/martinmaurice/limitd/pkg/enum"
)

// UpdateConfig persists a limit override for (scope, endpoint). Overrides
// live for 30 days and are re-read on every check, so all instances pick
// them up without coordination.
func (l *Limiter) UpdateConfig(ctx context.Context, scope enum.Scope, cfg Config, endpoint, requesterID string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if requesterID != "" {
		if err := l.requireAdmin(ctx, requesterID); err != nil {
			return err
		}
	}

	stored := storedConfig{
		Requests:  cfg.Requests,
		Window:    cfg.Window,
		UpdatedAt: l.now().UTC(),
		UpdatedBy: requesterID,
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, configKey(scope, endpoint), raw, configTTL); err != nil {
		return err
	}

	l.sink.Emit(EventConfigUpdated, map[string]any{
		"scope":        scope.String(),
		"endpoint":     endpoint,
		"requests":     cfg.Requests,
		"window":       cfg.Window,
		"requester_id": requesterID,
	})

	slog.Info("rate limit configuration updated",
		"scope", scope,
		"endpoint", endpoint,
		"requests", cfg.Requests,
		"window", cfg.Window,
		"requester_id", requesterID,
	)
	return nil
}

// resolveConfig picks the effective limit: a per-call custom limit wins,
// then a stored per-endpoint override, then a stored per-scope override,
// then the built-in defaults.
func (l *Limiter) resolveConfig(ctx context.Context, scope enum.Scope, endpoint string, custom *Config) (Config, error) {
	if custom != nil {
		return *custom, nil
	}

	keys := []string{configKey(scope, "")}
	if endpoint != "" {
		keys = []string{configKey(scope, endpoint), configKey(scope, "")}
	}

	for _, key := range keys {
		raw, err := l.store.Get(ctx, key)
		if err != nil {
			return Config{}, err
		}
		if raw == nil {
			continue
		}
		var stored storedConfig
		if err := json.Unmarshal(raw, &stored); err != nil {
			return Config{}, err
		}
		return Config{Requests: stored.Requests, Window: stored.Window}, nil
	}

	if cfg, ok := l.defaults[scope]; ok {
		return cfg, nil
	}
	return l.fallback, nil
}
