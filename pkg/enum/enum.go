package enum

import "fmt"

// Algorithm selects the admission algorithm used for a rate limit check.
type Algorithm string

const (
	TokenBucket   Algorithm = "token_bucket"
	SlidingWindow Algorithm = "sliding_window"
	FixedWindow   Algorithm = "fixed_window"
	LeakyBucket   Algorithm = "leaky_bucket"
)

func (a Algorithm) String() string {
	return string(a)
}

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case TokenBucket, SlidingWindow, FixedWindow, LeakyBucket:
		return Algorithm(s), nil
	default:
		return "", fmt.Errorf("unknown algorithm %q", s)
	}
}

// Scope is the dimension a rate limit is keyed on.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeUser      Scope = "user"
	ScopeIP        Scope = "ip"
	ScopeAPIKey    Scope = "api_key"
	ScopeEndpoint  Scope = "endpoint"
	ScopeUserAgent Scope = "user_agent"
)

func (s Scope) String() string {
	return string(s)
}

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeUser, ScopeIP, ScopeAPIKey, ScopeEndpoint, ScopeUserAgent:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}
