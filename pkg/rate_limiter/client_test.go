package rate_limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/martinmaurice/limitd/pkg/enum"
)

type capturedEvent struct {
	eventType string
	data      map[string]any
}

type captureSink struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (s *captureSink) Emit(eventType string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, capturedEvent{eventType: eventType, data: data})
}

func (s *captureSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.eventType)
	}
	return types
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

var errStoreDown = errors.New("store unavailable")

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errStoreDown
}

func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errStoreDown
}

func (failingStore) Delete(ctx context.Context, key string) error {
	return errStoreDown
}

func (failingStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return nil, errStoreDown
}

func newTestLimiter(t *testing.T, opts ...Option) (*Limiter, *MemoryStorage, *captureSink, *fakeClock) {
	t.Helper()
	storage := NewMemoryStorage()
	sink := &captureSink{}
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(storage, sink, opts...), storage, sink, clock
}

func TestLimiter_Check_SlidingWindowScenario(t *testing.T) {
	limiter, _, _, clock := newTestLimiter(t)
	ctx := context.Background()

	req := CheckRequest{
		Identifier:  "203.0.113.7",
		Scope:       enum.ScopeIP,
		Algorithm:   enum.SlidingWindow,
		CustomLimit: &Config{Requests: 3, Window: 60},
	}

	for _, wantRemaining := range []int{2, 1, 0} {
		decision, err := limiter.Check(ctx, req)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, wantRemaining, decision.Remaining)
		clock.Advance(10 * time.Second)
	}

	// t=30: denied, the slot taken at t=0 frees at t=60
	_, err := limiter.Check(ctx, req)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, ReasonRateLimited, exceeded.Reason)
	assert.Equal(t, 30*time.Second, exceeded.RetryAfter)

	clock.Advance(31 * time.Second)
	decision, err := limiter.Check(ctx, req)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestLimiter_Check_WhitelistTakesPrecedence(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.AddToWhitelist(ctx, ListParams{Identifier: "vip", Scope: enum.ScopeUser}))
	require.NoError(t, limiter.AddToBlacklist(ctx, ListParams{Identifier: "vip", Scope: enum.ScopeUser}))

	// a zero-request limit would deny anyone not whitelisted
	decision, err := limiter.Check(ctx, CheckRequest{
		Identifier:  "vip",
		Scope:       enum.ScopeUser,
		Algorithm:   enum.FixedWindow,
		CustomLimit: &Config{Requests: 1, Window: 60},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.Whitelisted)

	// whitelisted checks bypass the algorithm entirely
	for i := 0; i < 5; i++ {
		decision, err = limiter.Check(ctx, CheckRequest{
			Identifier:  "vip",
			Scope:       enum.ScopeUser,
			Algorithm:   enum.FixedWindow,
			CustomLimit: &Config{Requests: 1, Window: 60},
		})
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
}

func TestLimiter_Check_BlacklistedFailsForEveryAlgorithm(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.AddToBlacklist(ctx, ListParams{
		Identifier: "abuser",
		Scope:      enum.ScopeIP,
		Reason:     "credential stuffing",
	}))

	for _, algorithm := range []enum.Algorithm{enum.TokenBucket, enum.SlidingWindow, enum.FixedWindow, enum.LeakyBucket} {
		_, err := limiter.Check(ctx, CheckRequest{
			Identifier: "abuser",
			Scope:      enum.ScopeIP,
			Algorithm:  algorithm,
		})
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded, "algorithm %s", algorithm)
		assert.Equal(t, ReasonBlacklisted, exceeded.Reason)
		assert.Zero(t, exceeded.RetryAfter)
	}

	require.NoError(t, limiter.RemoveFromBlacklist(ctx, "abuser", enum.ScopeIP, ""))

	decision, err := limiter.Check(ctx, CheckRequest{
		Identifier: "abuser",
		Scope:      enum.ScopeIP,
		Algorithm:  enum.SlidingWindow,
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestLimiter_Check_FailsOpenWhenStoreIsDown(t *testing.T) {
	sink := &captureSink{}
	limiter := New(failingStore{}, sink)

	decision, err := limiter.Check(context.Background(), CheckRequest{
		Identifier: "user-1",
		Scope:      enum.ScopeUser,
		Algorithm:  enum.TokenBucket,
	})
	require.NoError(t, err, "store failures must never reach the hot-path caller")
	assert.True(t, decision.Allowed)
	assert.Equal(t, 0, decision.Remaining)
	assert.Contains(t, decision.Err, "store unavailable")
}

func TestLimiter_Check_UnknownAlgorithmFailsOpen(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)

	decision, err := limiter.Check(context.Background(), CheckRequest{
		Identifier: "user-1",
		Scope:      enum.ScopeUser,
		Algorithm:  enum.Algorithm("round_robin"),
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Contains(t, decision.Err, "unknown algorithm")
}

func TestLimiter_Check_EmitsExceededAndQuotaLowAlerts(t *testing.T) {
	limiter, _, sink, _ := newTestLimiter(t)
	ctx := context.Background()

	req := CheckRequest{
		Identifier:  "198.51.100.2",
		Scope:       enum.ScopeIP,
		Algorithm:   enum.FixedWindow,
		CustomLimit: &Config{Requests: 20, Window: 3600},
	}

	for i := 0; i < 19; i++ {
		_, err := limiter.Check(ctx, req)
		require.NoError(t, err)
	}
	// 19 used, 1 remaining: 1/20 < 10%
	assert.Contains(t, sink.types(), EventQuotaLow)
	assert.NotContains(t, sink.types(), EventExceeded)

	_, err := limiter.Check(ctx, req)
	require.NoError(t, err)
	_, err = limiter.Check(ctx, req)
	require.Error(t, err)
	assert.Contains(t, sink.types(), EventExceeded)
}

func TestLimiter_Reset_IsIdempotent(t *testing.T) {
	limiter, _, sink, _ := newTestLimiter(t)
	ctx := context.Background()

	req := CheckRequest{
		Identifier: "user-42",
		Scope:      enum.ScopeUser,
		Algorithm:  enum.FixedWindow,
	}
	_, err := limiter.Check(ctx, req)
	require.NoError(t, err)

	status, err := limiter.Status(ctx, "user-42", enum.ScopeUser, "")
	require.NoError(t, err)
	assert.Equal(t, 1, status.RequestsMade)

	require.NoError(t, limiter.Reset(ctx, "user-42", enum.ScopeUser, "", ""))
	require.NoError(t, limiter.Reset(ctx, "user-42", enum.ScopeUser, "", ""), "resetting a missing key succeeds")

	status, err = limiter.Status(ctx, "user-42", enum.ScopeUser, "")
	require.NoError(t, err)
	assert.Equal(t, 0, status.RequestsMade)

	assert.Contains(t, sink.types(), EventReset)
}

func TestLimiter_Reset_ValidatesAdminPermission(t *testing.T) {
	t.Run("no admin checker configured", func(t *testing.T) {
		limiter, _, _, _ := newTestLimiter(t)
		err := limiter.Reset(context.Background(), "user-1", enum.ScopeUser, "", "requester-9")
		var permission *PermissionError
		require.ErrorAs(t, err, &permission)
	})

	t.Run("requester is not an admin", func(t *testing.T) {
		limiter, _, _, _ := newTestLimiter(t, WithAdminChecker(AdminFunc(func(ctx context.Context, userID string) (bool, error) {
			return false, nil
		})))
		err := limiter.Reset(context.Background(), "user-1", enum.ScopeUser, "", "requester-9")
		var permission *PermissionError
		require.ErrorAs(t, err, &permission)
		assert.Equal(t, "requester-9", permission.UserID)
	})

	t.Run("admin requester succeeds", func(t *testing.T) {
		limiter, _, _, _ := newTestLimiter(t, WithAdminChecker(AdminFunc(func(ctx context.Context, userID string) (bool, error) {
			return userID == "root", nil
		})))
		require.NoError(t, limiter.Reset(context.Background(), "user-1", enum.ScopeUser, "", "root"))
	})

	t.Run("no requester skips the permission check", func(t *testing.T) {
		limiter, _, _, _ := newTestLimiter(t)
		require.NoError(t, limiter.Reset(context.Background(), "user-1", enum.ScopeUser, "", ""))
	})
}

func TestLimiter_UpdateConfig(t *testing.T) {
	limiter, _, sink, _ := newTestLimiter(t)
	ctx := context.Background()

	t.Run("rejects invalid configs", func(t *testing.T) {
		var configErr *ConfigError
		err := limiter.UpdateConfig(ctx, enum.ScopeIP, Config{Requests: 0, Window: 60}, "", "")
		require.ErrorAs(t, err, &configErr)
		err = limiter.UpdateConfig(ctx, enum.ScopeIP, Config{Requests: 10, Window: 0}, "", "")
		require.ErrorAs(t, err, &configErr)
	})

	t.Run("stored override drives subsequent checks", func(t *testing.T) {
		require.NoError(t, limiter.UpdateConfig(ctx, enum.ScopeIP, Config{Requests: 1, Window: 3600}, "", ""))
		assert.Contains(t, sink.types(), EventConfigUpdated)

		req := CheckRequest{Identifier: "203.0.113.9", Scope: enum.ScopeIP, Algorithm: enum.FixedWindow}
		_, err := limiter.Check(ctx, req)
		require.NoError(t, err)
		_, err = limiter.Check(ctx, req)
		var exceeded *ExceededError
		require.ErrorAs(t, err, &exceeded, "scope override of 1 request must deny the second check")
	})

	t.Run("endpoint override wins over scope override", func(t *testing.T) {
		require.NoError(t, limiter.UpdateConfig(ctx, enum.ScopeIP, Config{Requests: 100, Window: 3600}, "POST:/login", ""))

		status, err := limiter.Status(ctx, "203.0.113.9", enum.ScopeIP, "POST:/login")
		require.NoError(t, err)
		assert.Equal(t, Config{Requests: 100, Window: 3600}, status.Config)

		status, err = limiter.Status(ctx, "203.0.113.9", enum.ScopeIP, "")
		require.NoError(t, err)
		assert.Equal(t, Config{Requests: 1, Window: 3600}, status.Config)
	})

	t.Run("custom limit wins over every override", func(t *testing.T) {
		decision, err := limiter.Check(ctx, CheckRequest{
			Identifier:  "203.0.113.10",
			Scope:       enum.ScopeIP,
			Endpoint:    "POST:/login",
			Algorithm:   enum.FixedWindow,
			CustomLimit: &Config{Requests: 500, Window: 60},
		})
		require.NoError(t, err)
		assert.Equal(t, 499, decision.Remaining)
	})
}

func TestLimiter_Status_DoesNotConsumeQuota(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)
	ctx := context.Background()

	req := CheckRequest{
		Identifier:  "user-7",
		Scope:       enum.ScopeUser,
		Algorithm:   enum.SlidingWindow,
		CustomLimit: &Config{Requests: 10, Window: 60},
	}
	_, err := limiter.Check(ctx, req)
	require.NoError(t, err)

	first, err := limiter.Status(ctx, "user-7", enum.ScopeUser, "")
	require.NoError(t, err)
	second, err := limiter.Status(ctx, "user-7", enum.ScopeUser, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.RequestsMade)
}

func TestLimiter_Status_UnknownKeyReportsFullQuota(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)

	status, err := limiter.Status(context.Background(), "nobody", enum.ScopeUser, "")
	require.NoError(t, err)
	assert.Equal(t, 0, status.RequestsMade)
	assert.Equal(t, DefaultLimits()[enum.ScopeUser].Requests, status.RequestsRemaining)
}

func TestLimiter_Check_DefaultLimitsPerScope(t *testing.T) {
	limiter, _, _, _ := newTestLimiter(t)

	// user_agent has no built-in default and falls back
	decision, err := limiter.Check(context.Background(), CheckRequest{
		Identifier: "curl/8.0",
		Scope:      enum.ScopeUserAgent,
		Algorithm:  enum.FixedWindow,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultFallbackLimit.Requests-1, decision.Remaining)
}
