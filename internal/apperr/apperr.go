// Package apperr defines the error taxonomy shared by the account, session and
// rate limiting packages, and how each kind surfaces over HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrValidation marks malformed input rejected before any state mutation.
	ErrValidation = errors.New("validation error")
	// ErrDuplicateAccount marks a registration for an account number that already exists.
	ErrDuplicateAccount = errors.New("duplicate account")
	// ErrNotFound marks an unknown account.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks bad credentials or a missing/invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLocked marks a login refused because the account is currently locked out.
	ErrLocked = errors.New("account locked")
	// ErrRateLimited marks a request rejected by the rate limiter.
	ErrRateLimited = errors.New("rate limited")
	// ErrStorage marks a failed or rolled back storage operation.
	ErrStorage = errors.New("storage error")
	// ErrUnexpected marks anything not otherwise categorized.
	ErrUnexpected = errors.New("unexpected error")
)

// Error is a typed operation error. Kind is always one of the sentinel kinds
// above; Msg is safe to show to clients; Err carries internal detail for logs.
type Error struct {
	Op   string
	Kind error
	Msg  string
	Err  error
	// RetryAfter is set on locked and rate limited errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %v: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Is reports whether target is this error's kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a client-facing message.
func New(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(op string, kind error, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Validation is shorthand for New(op, ErrValidation, msg).
func Validation(op, msg string) *Error {
	return New(op, ErrValidation, msg)
}

// Storage wraps a storage failure. The client message never carries driver detail.
func Storage(op string, err error) *Error {
	return Wrap(op, ErrStorage, "Database error occurred", err)
}

// RetryAfter returns how long the client should wait before retrying, or zero.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// KindOf returns the sentinel kind of err, or ErrUnexpected.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation, ErrDuplicateAccount, ErrNotFound, ErrLocked,
		ErrUnauthorized, ErrRateLimited, ErrStorage,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnexpected
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	switch KindOf(err) {
	case ErrStorage:
		return "Database error occurred"
	case ErrUnexpected:
		return "An unexpected error occurred"
	default:
		return KindOf(err).Error()
	}
}

// HTTPStatus maps err to the status code returned to clients.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrDuplicateAccount:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrLocked:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
