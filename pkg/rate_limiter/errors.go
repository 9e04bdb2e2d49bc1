package rate_limiter

import (
	"fmt"
	"time"

	"github/martinmaurice/limitd/pkg/enum"
)

const (
	ReasonRateLimited = "rate_limited"
	ReasonBlacklisted = "blacklisted"
)

// ExceededError tells the caller to back off. RetryAfter is zero when no
// meaningful hint exists (blacklist entries, continuous-refill buckets).
type ExceededError struct {
	Scope      enum.Scope
	Identifier string
	Reason     string
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

func (e *ExceededError) Error() string {
	if e.Reason == ReasonBlacklisted {
		return fmt.Sprintf("access blocked: %s is blacklisted", e.Identifier)
	}
	return fmt.Sprintf("rate limit exceeded for %s: %s", e.Scope, e.Identifier)
}

// ConfigError reports an invalid or incomplete rate limit configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid rate limit config: " + e.Reason
}

// PermissionError reports a requester without admin rights on a
// management operation.
type PermissionError struct {
	UserID string
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s: %s", e.UserID, e.Reason)
}
