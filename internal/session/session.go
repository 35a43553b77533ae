// Package session mints and verifies signed bearer tokens for authenticated accounts.
package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/secureauth/secureauth/internal/apperr"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

// Claims are the application claims carried in a token alongside the registered ones.
type Claims struct {
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Token is a signed bearer credential and its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ExpiresIn returns the remaining lifetime in whole seconds relative to now.
func (t Token) ExpiresIn(now time.Time) int64 {
	return int64(t.ExpiresAt.Sub(now).Seconds())
}

// Issuer signs tokens with HS256. Expiry is the only invalidation mechanism.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer. A non-positive ttl uses DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the issuer's time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue mints a token for accountNumber expiring at now+TTL.
func (i *Issuer) Issue(accountNumber string, claims Claims) (Token, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)

	claims.AccountNumber = accountNumber
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   accountNumber,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, apperr.Wrap("session.Issue", apperr.ErrUnexpected, "", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (i *Issuer) Verify(token string) (Claims, error) {
	const op = "session.Verify"

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return Claims{}, apperr.Wrap(op, apperr.ErrUnauthorized, msg, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Claims{}, apperr.New(op, apperr.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}
