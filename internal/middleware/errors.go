package middleware

import (
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/secureauth/secureauth/internal/apperr"
)

// ErrorStatus returns the HTTP status an error will be rendered with.
func ErrorStatus(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.HTTPStatus(err)
}

// ErrorMessage returns the client-facing message for err.
func ErrorMessage(err error) string {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return apperr.Message(err)
}

// ErrorHandler renders every error returned by a handler as the JSON envelope
// {"success": false, "message": ...}. Locked and rate limited responses carry
// Retry-After in whole seconds.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := ErrorStatus(err)
		if status >= fiber.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("request_id", GetRequestID(c)),
				slog.Any("error", err))
		}
		if retry := apperr.RetryAfter(err); retry > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		}
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"message": ErrorMessage(err),
		})
	}
}
