// Package password hashes and verifies account secrets with bcrypt.
package password

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/secureauth/secureauth/internal/apperr"
)

const (
	// MinLength is the shortest secret accepted at hash time, in characters.
	MinLength = 8
	// maxLength is bcrypt's input limit; longer secrets would be silently truncated.
	maxLength = 72
)

var digestPrefixes = []string{"$2a$", "$2b$", "$2y$"}

// Hasher produces self-describing bcrypt digests. The zero value hashes at
// bcrypt.DefaultCost and never accepts pre-hashed input.
type Hasher struct {
	Cost int
	// AllowPrehashed stores secrets that already parse as a bcrypt digest
	// unchanged. Intended for migrating accounts from a previous system.
	AllowPrehashed bool

	dummy []byte
}

// New returns a Hasher at the given cost; cost outside bcrypt's range falls back to the default.
func New(cost int, allowPrehashed bool) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	h := &Hasher{Cost: cost, AllowPrehashed: allowPrehashed}
	// Only used to burn comparable CPU when the account does not exist.
	h.dummy, _ = bcrypt.GenerateFromPassword([]byte("secureauth-dummy-secret"), cost)
	return h
}

// Hash returns a salted digest of secret. Two calls with the same secret
// return different digests.
func (h *Hasher) Hash(secret string) (string, error) {
	const op = "password.Hash"

	if utf8.RuneCountInString(secret) < MinLength {
		return "", apperr.Validation(op, "Password must be at least 8 characters long")
	}
	if h.AllowPrehashed && IsDigest(secret) {
		return secret, nil
	}
	if len(secret) > maxLength {
		return "", apperr.Validation(op, "Password must be at most 72 bytes long")
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost())
	if err != nil {
		return "", apperr.Wrap(op, apperr.ErrUnexpected, "", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. A malformed digest is a
// mismatch, never an error.
func (h *Hasher) Verify(secret, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// VerifyDummy runs a comparison against a throwaway digest so that a lookup
// miss costs about as much as a real password check.
func (h *Hasher) VerifyDummy(secret string) {
	if len(h.dummy) == 0 {
		return
	}
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}

// IsDigest reports whether s carries a bcrypt signature with a parseable cost.
func IsDigest(s string) bool {
	matched := false
	for _, p := range digestPrefixes {
		if strings.HasPrefix(s, p) {
			matched = true
			break
		}
	}
	if !matched || len(s) != 60 {
		return false
	}
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

func (h *Hasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}
