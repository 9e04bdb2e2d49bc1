package rate_limiter

import (
	"context"
	"time"
)

// Storer is the keyed state store shared by every limiter instance.
// Get returns (nil, nil) when the key does not exist. A zero ttl on Set
// means the key never expires.
type Storer interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// EventSink receives audit and alerting events. Emit is fire-and-forget:
// implementations must never block the caller or report failures back to it.
type EventSink interface {
	Emit(eventType string, data map[string]any)
}

// AdminChecker answers whether a requester may run management operations.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// AdminFunc adapts a function to the AdminChecker interface.
type AdminFunc func(ctx context.Context, userID string) (bool, error)

func (f AdminFunc) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return f(ctx, userID)
}
