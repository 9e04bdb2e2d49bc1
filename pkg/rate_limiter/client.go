package rate_limiter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github/martinmaurice/limitd/pkg/enum"
)

const (
	EventExceeded         = "rate_limit.exceeded"
	EventQuotaLow         = "rate_limit.quota_low"
	EventReset            = "rate_limit.reset"
	EventWhitelistAdded   = "rate_limit.whitelist_added"
	EventWhitelistRemoved = "rate_limit.whitelist_removed"
	EventBlacklistAdded   = "rate_limit.blacklist_added"
	EventBlacklistRemoved = "rate_limit.blacklist_removed"
	EventConfigUpdated    = "rate_limit.config_updated"
)

const (
	configTTL              = 30 * 24 * time.Hour
	eventRecordTTL         = time.Hour
	windowTTLBuffer        = 60 * time.Second
	defaultQuotaAlertRatio = 0.1
)

// DefaultLimits returns the built-in per-scope limits used when no override
// is stored. Scopes without an entry fall back to DefaultFallbackLimit.
func DefaultLimits() map[enum.Scope]Config {
	return map[enum.Scope]Config{
		enum.ScopeGlobal:   {Requests: 10000, Window: 3600},
		enum.ScopeUser:     {Requests: 1000, Window: 3600},
		enum.ScopeIP:       {Requests: 100, Window: 60},
		enum.ScopeAPIKey:   {Requests: 5000, Window: 3600},
		enum.ScopeEndpoint: {Requests: 60, Window: 60},
	}
}

var DefaultFallbackLimit = Config{Requests: 100, Window: 3600}

// Limiter is the rate limiting service. All state lives in the injected
// Storer so any number of instances share one view; the Limiter itself
// caches nothing across calls.
type Limiter struct {
	store           Storer
	sink            EventSink
	admin           AdminChecker
	defaults        map[enum.Scope]Config
	fallback        Config
	quotaAlertRatio float64
	now             func() time.Time
}

type Option func(*Limiter)

// WithAdminChecker installs the collaborator consulted whenever a
// management operation carries a requester id.
func WithAdminChecker(a AdminChecker) Option {
	return func(l *Limiter) {
		l.admin = a
	}
}

// WithDefaults replaces the built-in per-scope limits.
func WithDefaults(defaults map[enum.Scope]Config, fallback Config) Option {
	return func(l *Limiter) {
		l.defaults = defaults
		l.fallback = fallback
	}
}

// WithQuotaAlertRatio sets the remaining/limit ratio under which a
// quota-low alert is emitted.
func WithQuotaAlertRatio(ratio float64) Option {
	return func(l *Limiter) {
		l.quotaAlertRatio = ratio
	}
}

// WithClock overrides the wall clock, used by tests to simulate elapsed time.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store Storer, sink EventSink, opts ...Option) *Limiter {
	l := &Limiter{
		store:           store,
		sink:            sink,
		defaults:        DefaultLimits(),
		fallback:        DefaultFallbackLimit,
		quotaAlertRatio: defaultQuotaAlertRatio,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check runs one admission check. A denial is returned as *ExceededError;
// any internal failure (store down, decode error) fails open: the request
// is allowed and the error is only logged and echoed in Decision.Err.
func (l *Limiter) Check(ctx context.Context, req CheckRequest) (Decision, error) {
	listed, err := l.isListed(ctx, whitelistKey(req.Scope, req.Identifier))
	if err != nil {
		return l.failOpen(req, err)
	}
	if listed {
		return Decision{Allowed: true, Whitelisted: true}, nil
	}

	listed, err = l.isListed(ctx, blacklistKey(req.Scope, req.Identifier))
	if err != nil {
		return l.failOpen(req, err)
	}
	if listed {
		return Decision{}, &ExceededError{
			Scope:      req.Scope,
			Identifier: req.Identifier,
			Reason:     ReasonBlacklisted,
		}
	}

	cfg, err := l.resolveConfig(ctx, req.Scope, req.Endpoint, req.CustomLimit)
	if err != nil {
		return l.failOpen(req, err)
	}

	res, err := l.runAlgorithm(ctx, req, cfg)
	if err != nil {
		return l.failOpen(req, err)
	}

	l.recordCheck(ctx, req, res)

	if !res.allowed || float64(res.remaining)/float64(cfg.Requests) < l.quotaAlertRatio {
		l.alert(req, res, cfg)
	}

	if !res.allowed {
		return Decision{}, &ExceededError{
			Scope:      req.Scope,
			Identifier: req.Identifier,
			Reason:     ReasonRateLimited,
			RetryAfter: secondsToDuration(res.retryAfter),
			ResetAt:    unixToTime(res.resetAt),
		}
	}

	return Decision{
		Allowed:   true,
		Remaining: res.remaining,
		ResetAt:   unixToTime(res.resetAt),
	}, nil
}

// runAlgorithm does the read-modify-write for one check. The sequence is
// not atomic across callers: concurrent checks on the same key are
// last-writer-wins and can transiently over-admit.
func (l *Limiter) runAlgorithm(ctx context.Context, req CheckRequest, cfg Config) (checkResult, error) {
	key := stateKey(req.Scope, req.Identifier, req.Endpoint)

	raw, err := l.store.Get(ctx, key)
	if err != nil {
		return checkResult{}, err
	}

	var (
		now   = timeToUnix(l.now())
		state any
		res   checkResult
		ttl   time.Duration
	)

	switch req.Algorithm {
	case enum.TokenBucket:
		var prev tokenBucketState
		ok, err := decodeState(raw, req.Algorithm, &prev)
		if err != nil {
			return checkResult{}, err
		}
		state, res = tokenBucketCheck(statePtr(ok, &prev), cfg, now)
		ttl = 2 * cfg.windowDuration()
	case enum.SlidingWindow:
		var prev slidingWindowState
		ok, err := decodeState(raw, req.Algorithm, &prev)
		if err != nil {
			return checkResult{}, err
		}
		state, res = slidingWindowCheck(statePtr(ok, &prev), cfg, now)
		ttl = cfg.windowDuration() + windowTTLBuffer
	case enum.FixedWindow:
		var prev fixedWindowState
		ok, err := decodeState(raw, req.Algorithm, &prev)
		if err != nil {
			return checkResult{}, err
		}
		state, res = fixedWindowCheck(statePtr(ok, &prev), cfg, now)
		ttl = cfg.windowDuration() + windowTTLBuffer
	case enum.LeakyBucket:
		var prev leakyBucketState
		ok, err := decodeState(raw, req.Algorithm, &prev)
		if err != nil {
			return checkResult{}, err
		}
		state, res = leakyBucketCheck(statePtr(ok, &prev), cfg, now)
		ttl = 2 * cfg.windowDuration()
	default:
		return checkResult{}, fmt.Errorf("unknown algorithm %q", req.Algorithm)
	}

	encoded, err := encodeState(req.Algorithm, state)
	if err != nil {
		return checkResult{}, err
	}
	if err := l.store.Set(ctx, key, encoded, ttl); err != nil {
		return checkResult{}, err
	}

	return res, nil
}

func (l *Limiter) failOpen(req CheckRequest, err error) (Decision, error) {
	slog.Error("rate limit check failed, allowing request",
		"identifier", req.Identifier,
		"scope", req.Scope,
		"error", err,
	)
	return Decision{Allowed: true, Err: err.Error()}, nil
}

// Status reads the current quota for a key without consuming any of it.
func (l *Limiter) Status(ctx context.Context, identifier string, scope enum.Scope, endpoint string) (Status, error) {
	cfg, err := l.resolveConfig(ctx, scope, endpoint, nil)
	if err != nil {
		return Status{}, err
	}

	raw, err := l.store.Get(ctx, stateKey(scope, identifier, endpoint))
	if err != nil {
		return Status{}, err
	}

	st := Status{RequestsRemaining: cfg.Requests, Config: cfg}
	if raw == nil {
		return st, nil
	}

	var env stateEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Status{}, err
	}

	now := timeToUnix(l.now())

	switch env.Algorithm {
	case enum.TokenBucket:
		var s tokenBucketState
		if err := json.Unmarshal(env.State, &s); err != nil {
			return Status{}, err
		}
		tokens := math.Min(float64(cfg.Requests), s.Tokens+elapsedSince(s.LastRefill, now)*cfg.rate())
		st.RequestsRemaining = int(tokens)
		st.RequestsMade = cfg.Requests - st.RequestsRemaining
	case enum.SlidingWindow:
		var s slidingWindowState
		if err := json.Unmarshal(env.State, &s); err != nil {
			return Status{}, err
		}
		windowStart := now - float64(cfg.Window)
		var oldest float64
		for _, ts := range s.Requests {
			if ts <= windowStart {
				continue
			}
			st.RequestsMade++
			if oldest == 0 || ts < oldest {
				oldest = ts
			}
		}
		st.RequestsRemaining = max(0, cfg.Requests-st.RequestsMade)
		st.WindowStart = unixToTime(windowStart)
		if oldest > 0 {
			st.ResetAt = unixToTime(oldest + float64(cfg.Window))
		}
	case enum.FixedWindow:
		var s fixedWindowState
		if err := json.Unmarshal(env.State, &s); err != nil {
			return Status{}, err
		}
		boundary := math.Floor(now/float64(cfg.Window)) * float64(cfg.Window)
		if s.WindowStart == boundary {
			st.RequestsMade = s.Count
		}
		st.RequestsRemaining = max(0, cfg.Requests-st.RequestsMade)
		st.WindowStart = unixToTime(boundary)
		st.ResetAt = unixToTime(boundary + float64(cfg.Window))
	case enum.LeakyBucket:
		var s leakyBucketState
		if err := json.Unmarshal(env.State, &s); err != nil {
			return Status{}, err
		}
		volume := math.Max(0, s.Volume-elapsedSince(s.LastLeak, now)*cfg.rate())
		st.RequestsMade = int(math.Ceil(volume))
		st.RequestsRemaining = max(0, int(float64(cfg.Requests)-volume))
	default:
		return Status{}, fmt.Errorf("unknown algorithm %q in stored state", env.Algorithm)
	}

	return st, nil
}

// Reset deletes the stored state for a key. Resetting a key that has no
// state succeeds. Unlike Check, store failures surface to the caller.
func (l *Limiter) Reset(ctx context.Context, identifier string, scope enum.Scope, endpoint, requesterID string) error {
	if requesterID != "" {
		if err := l.requireAdmin(ctx, requesterID); err != nil {
			return err
		}
	}

	if err := l.store.Delete(ctx, stateKey(scope, identifier, endpoint)); err != nil {
		return err
	}

	l.sink.Emit(EventReset, map[string]any{
		"identifier":   identifier,
		"scope":        scope.String(),
		"endpoint":     endpoint,
		"requester_id": requesterID,
	})

	slog.Info("rate limit reset",
		"identifier", identifier,
		"scope", scope,
		"endpoint", endpoint,
		"requester_id", requesterID,
	)
	return nil
}

func (l *Limiter) requireAdmin(ctx context.Context, userID string) error {
	if l.admin == nil {
		return &PermissionError{UserID: userID, Reason: "no admin checker configured"}
	}
	ok, err := l.admin.IsAdmin(ctx, userID)
	if err != nil {
		return &PermissionError{UserID: userID, Reason: "permission check failed: " + err.Error()}
	}
	if !ok {
		return &PermissionError{UserID: userID, Reason: "admin privileges required"}
	}
	return nil
}

// recordCheck stores a short-lived audit record for the analytics surface.
// Failures never affect the decision.
func (l *Limiter) recordCheck(ctx context.Context, req CheckRequest, res checkResult) {
	now := l.now()
	record := checkRecord{
		Identifier: req.Identifier,
		Scope:      req.Scope,
		Endpoint:   req.Endpoint,
		Algorithm:  req.Algorithm,
		Allowed:    res.allowed,
		Remaining:  res.remaining,
		Timestamp:  now.UTC(),
		Metadata:   req.Metadata,
	}

	raw, err := json.Marshal(record)
	if err == nil {
		err = l.store.Set(ctx, eventKey(now.Unix()), raw, eventRecordTTL)
	}
	if err != nil {
		slog.Error("failed to record rate limit check", "error", err)
	}
}

func (l *Limiter) alert(req CheckRequest, res checkResult, cfg Config) {
	if !res.allowed {
		l.sink.Emit(EventExceeded, map[string]any{
			"identifier": req.Identifier,
			"scope":      req.Scope.String(),
			"endpoint":   req.Endpoint,
			"algorithm":  req.Algorithm.String(),
			"requests":   cfg.Requests,
			"window":     cfg.Window,
			"timestamp":  l.now().UTC().Format(time.RFC3339),
		})
		return
	}

	l.sink.Emit(EventQuotaLow, map[string]any{
		"identifier": req.Identifier,
		"scope":      req.Scope.String(),
		"remaining":  res.remaining,
		"total":      cfg.Requests,
		"timestamp":  l.now().UTC().Format(time.RFC3339),
	})
}

func statePtr[T any](ok bool, state *T) *T {
	if ok {
		return state
	}
	return nil
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func unixToTime(seconds float64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(seconds*float64(time.Second)))
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
