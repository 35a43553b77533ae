package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/apperr"
	"github.com/secureauth/secureauth/internal/session"
)

const (
	accountNumberKey = "account_number"
	claimsKey        = "claims"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (session.Claims, error)
}

// BearerAuth rejects requests without a valid, unexpired bearer token and
// exposes the token's identity to downstream handlers.
func BearerAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		const op = "middleware.BearerAuth"

		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return apperr.New(op, apperr.ErrUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		if tokenStr == "" {
			return apperr.New(op, apperr.ErrUnauthorized, "missing bearer token")
		}

		claims, err := verifier.Verify(tokenStr)
		if err != nil {
			return err
		}

		c.Locals(accountNumberKey, claims.Subject)
		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

// AccountNumber returns the authenticated account number, or "".
func AccountNumber(c *fiber.Ctx) string {
	s, _ := c.Locals(accountNumberKey).(string)
	return s
}

// Claims returns the verified token claims.
func Claims(c *fiber.Ctx) (session.Claims, bool) {
	claims, ok := c.Locals(claimsKey).(session.Claims)
	return claims, ok
}
