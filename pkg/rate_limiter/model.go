package rate_limiter

import (
	"time"

	"github/martinmaurice/limitd/pkg/enum"
)

// Config is one rate limit: Requests per Window seconds.
type Config struct {
	Requests int `json:"requests"`
	Window   int `json:"window"`
}

func (c Config) Validate() error {
	if c.Requests <= 0 {
		return &ConfigError{Reason: "requests must be greater than zero"}
	}
	if c.Window <= 0 {
		return &ConfigError{Reason: "window must be greater than zero"}
	}
	return nil
}

// rate is the refill/leak rate in requests per second.
func (c Config) rate() float64 {
	return float64(c.Requests) / float64(c.Window)
}

func (c Config) windowDuration() time.Duration {
	return time.Duration(c.Window) * time.Second
}

// CheckRequest describes one admission check.
type CheckRequest struct {
	Identifier  string
	Scope       enum.Scope
	Endpoint    string
	Algorithm   enum.Algorithm
	CustomLimit *Config
	Metadata    map[string]any
}

// Decision is the outcome of an allowed check. Denials are reported as
// *ExceededError instead.
type Decision struct {
	Allowed     bool
	Remaining   int
	ResetAt     time.Time // zero when the algorithm has no fixed reset point
	Whitelisted bool      // no quota applies, Remaining is meaningless
	Err         string    // set when an internal failure let the request through
}

// Status is a read-only view of one key's quota.
type Status struct {
	RequestsMade      int
	RequestsRemaining int
	ResetAt           time.Time
	WindowStart       time.Time
	Config            Config
}

// ListEntry is a whitelist or blacklist record, keyed by (scope, identifier).
type ListEntry struct {
	Identifier string     `json:"identifier"`
	Scope      enum.Scope `json:"scope"`
	Reason     string     `json:"reason,omitempty"`
	AddedAt    time.Time  `json:"added_at"`
	AddedBy    string     `json:"added_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ListParams are the inputs to the whitelist/blacklist management calls.
type ListParams struct {
	Identifier  string
	Scope       enum.Scope
	Reason      string
	ExpiresAt   *time.Time
	RequesterID string
}

// storedConfig is the persisted form of a configuration override.
type storedConfig struct {
	Requests  int       `json:"requests"`
	Window    int       `json:"window"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// checkRecord is the short-lived per-check audit record the analytics
// surface aggregates over.
type checkRecord struct {
	Identifier string         `json:"identifier"`
	Scope      enum.Scope     `json:"scope"`
	Endpoint   string         `json:"endpoint,omitempty"`
	Algorithm  enum.Algorithm `json:"algorithm"`
	Allowed    bool           `json:"allowed"`
	Remaining  int            `json:"remaining"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
