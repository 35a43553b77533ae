// Package ratelimit implements a per-client fixed-window request quota backed by Redis.
//
// Windows are aligned to the wall clock, so a client can burst up to twice
// the limit across a window boundary.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rl:"

// Rule is a named quota: at most Limit requests per Window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Result describes the limiter's decision for one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time until the current window resets.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts requests in Redis. Every call increments the counter, so
// concurrent requests from the same client are all counted.
type Limiter struct {
	cache *redis.Client
	now   func() time.Time
}

// New builds a limiter over the given Redis client.
func New(cache *redis.Client) *Limiter {
	return &Limiter{cache: cache, now: time.Now}
}

// WithClock replaces the limiter's time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Now returns the limiter's current time.
func (l *Limiter) Now() time.Time { return l.now() }

// Allow counts one request from client against rule.
func (l *Limiter) Allow(ctx context.Context, rule Rule, client string) (Result, error) {
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Result{Allowed: true, Limit: rule.Limit}, nil
	}

	now := l.now()
	window := now.UnixNano() / int64(rule.Window)
	resetAt := time.Unix(0, (window+1)*int64(rule.Window))
	key := Key(rule.Name, client, window)

	var incr *redis.IntCmd
	_, err := l.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rule.Window+time.Second)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", rule.Name, err)
	}

	count := int(incr.Val())
	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= rule.Limit,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Key returns the Redis key for a client's counter in the given window.
func Key(rule, client string, window int64) string {
	return keyPrefix + rule + ":" + client + ":" + strconv.FormatInt(window, 10)
}
