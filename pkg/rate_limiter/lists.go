package rate_limiter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github/martinmaurice/limitd/pkg/enum"
)

// AddToWhitelist exempts (scope, identifier) from every check until the
// entry is removed or expires. Whitelisting wins over a blacklist entry for
// the same identifier.
func (l *Limiter) AddToWhitelist(ctx context.Context, p ListParams) error {
	return l.addToList(ctx, whitelistKey(p.Scope, p.Identifier), EventWhitelistAdded, p)
}

// AddToBlacklist blocks (scope, identifier) outright until the entry is
// removed or expires.
func (l *Limiter) AddToBlacklist(ctx context.Context, p ListParams) error {
	return l.addToList(ctx, blacklistKey(p.Scope, p.Identifier), EventBlacklistAdded, p)
}

func (l *Limiter) RemoveFromWhitelist(ctx context.Context, identifier string, scope enum.Scope, requesterID string) error {
	return l.removeFromList(ctx, whitelistKey(scope, identifier), EventWhitelistRemoved, identifier, scope, requesterID)
}

func (l *Limiter) RemoveFromBlacklist(ctx context.Context, identifier string, scope enum.Scope, requesterID string) error {
	return l.removeFromList(ctx, blacklistKey(scope, identifier), EventBlacklistRemoved, identifier, scope, requesterID)
}

func (l *Limiter) addToList(ctx context.Context, key, eventType string, p ListParams) error {
	if p.RequesterID != "" {
		if err := l.requireAdmin(ctx, p.RequesterID); err != nil {
			return err
		}
	}

	now := l.now()

	var ttl time.Duration
	if p.ExpiresAt != nil {
		ttl = p.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return &ConfigError{Reason: "expires_at is in the past"}
		}
	}

	entry := ListEntry{
		Identifier: p.Identifier,
		Scope:      p.Scope,
		Reason:     p.Reason,
		AddedAt:    now.UTC(),
		AddedBy:    p.RequesterID,
		ExpiresAt:  p.ExpiresAt,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, key, raw, ttl); err != nil {
		return err
	}

	l.sink.Emit(eventType, map[string]any{
		"identifier": p.Identifier,
		"scope":      p.Scope.String(),
		"reason":     p.Reason,
		"added_by":   p.RequesterID,
	})

	slog.Info("rate limit list entry added",
		"event", eventType,
		"identifier", p.Identifier,
		"scope", p.Scope,
		"requester_id", p.RequesterID,
	)
	return nil
}

func (l *Limiter) removeFromList(ctx context.Context, key, eventType, identifier string, scope enum.Scope, requesterID string) error {
	if requesterID != "" {
		if err := l.requireAdmin(ctx, requesterID); err != nil {
			return err
		}
	}

	if err := l.store.Delete(ctx, key); err != nil {
		return err
	}

	l.sink.Emit(eventType, map[string]any{
		"identifier":   identifier,
		"scope":        scope.String(),
		"requester_id": requesterID,
	})
	return nil
}

// isListed reports whether a non-expired entry exists under key. Expired
// entries are deleted on read and treated as absent.
func (l *Limiter) isListed(ctx context.Context, key string) (bool, error) {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}

	var entry ListEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false, err
	}

	if entry.ExpiresAt != nil && l.now().After(*entry.ExpiresAt) {
		if err := l.store.Delete(ctx, key); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}
