package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLimiter(t *testing.T, now *time.Time) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return New(cache).WithClock(func() time.Time { return *now }), mr
}

func TestAllowWithinQuota(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 5, 0, time.UTC)
	limiter, _ := setupLimiter(t, &now)
	rule := Rule{Name: "login", Limit: 10, Window: time.Minute}
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := limiter.Allow(ctx, rule, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should pass", i)
		assert.Equal(t, 10-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, rule, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 1, 0, 0, time.UTC), res.ResetAt.UTC())
	assert.Equal(t, 55*time.Second, res.RetryAfter(now))
}

func TestClientsAndRulesAreIndependent(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter, _ := setupLimiter(t, &now)
	ctx := context.Background()
	login := Rule{Name: "login", Limit: 1, Window: time.Minute}
	register := Rule{Name: "register", Limit: 1, Window: time.Minute}

	res, err := limiter.Allow(ctx, login, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, login, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, register, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.Allow(ctx, login, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestWindowResetsOnClockBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 59, 0, time.UTC)
	limiter, _ := setupLimiter(t, &now)
	ctx := context.Background()
	rule := Rule{Name: "login", Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, rule, "c")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}

	// One second later a new window starts: the boundary burst is accepted.
	now = now.Add(time.Second)
	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, rule, "c")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := limiter.Allow(ctx, rule, "c")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestConcurrentRequestsAreAllCounted(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter, mr := setupLimiter(t, &now)
	ctx := context.Background()
	rule := Rule{Name: "login", Limit: 1000, Window: time.Minute}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := limiter.Allow(ctx, rule, "d"); err != nil {
				t.Errorf("allow: %v", err)
			}
		}()
	}
	wg.Wait()

	window := now.UnixNano() / int64(time.Minute)
	got, err := mr.Get(Key("login", "d", window))
	require.NoError(t, err)
	assert.Equal(t, "50", got)
	assert.True(t, mr.TTL(Key("login", "d", window)) > 0)
}

func TestDisabledRuleAlwaysAllows(t *testing.T) {
	now := time.Now()
	limiter, _ := setupLimiter(t, &now)

	res, err := limiter.Allow(context.Background(), Rule{Name: "off"}, "e")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestAllowSurfacesRedisErrors(t *testing.T) {
	now := time.Now()
	limiter, mr := setupLimiter(t, &now)
	mr.Close()

	_, err := limiter.Allow(context.Background(), Rule{Name: "login", Limit: 1, Window: time.Minute}, "f")
	assert.Error(t, err)
}
