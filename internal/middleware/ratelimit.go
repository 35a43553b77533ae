package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/apperr"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

// Limiter counts a request against a rule.
type Limiter interface {
	Allow(ctx context.Context, rule ratelimit.Rule, client string) (ratelimit.Result, error)
	Now() time.Time
}

// RejectionObserver is told about every rejected request.
type RejectionObserver interface {
	ObserveRateLimited(rule string)
}

// RateLimit enforces rule per client address before the route handler runs.
// Limiter failures fail open so an unavailable Redis does not take logins down.
func RateLimit(limiter Limiter, rule ratelimit.Rule, observer RejectionObserver, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}
		client := c.IP()
		res, err := limiter.Allow(c.UserContext(), rule, client)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					slog.String("rule", rule.Name), slog.String("ip", client), slog.Any("error", err))
			}
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			if observer != nil {
				observer.ObserveRateLimited(rule.Name)
			}
			if logger != nil {
				logger.Warn("rate limit exceeded", slog.String("rule", rule.Name), slog.String("ip", client))
			}
			return &apperr.Error{
				Op:         "middleware.RateLimit",
				Kind:       apperr.ErrRateLimited,
				Msg:        "Rate limit exceeded. Please try again later.",
				RetryAfter: res.RetryAfter(limiter.Now()),
			}
		}
		return c.Next()
	}
}
