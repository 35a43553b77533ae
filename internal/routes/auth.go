package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/account"
)

// AccountMiddleware carries the per-route guards for account endpoints.
type AccountMiddleware struct {
	RegisterLimit fiber.Handler
	LoginLimit    fiber.Handler
	Idempotency   fiber.Handler
	Auth          fiber.Handler
}

// RegisterAccountRoutes wires registration, login and profile management.
// Auth is attached per route so that unknown paths still fall through to 404.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, mw AccountMiddleware) {
	r.Post("/register", mw.RegisterLimit, mw.Idempotency, h.Register)
	r.Post("/login", mw.LoginLimit, h.Login)

	r.Get("/profile", mw.Auth, h.Profile)
	r.Get("/", mw.Auth, h.List)
	r.Post("/", mw.Auth, mw.Idempotency, h.Add)
	r.Put("/:account_number", mw.Auth, h.Update)
	r.Delete("/:account_number", mw.Auth, h.Delete)
}
