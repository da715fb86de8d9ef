package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when a stored bearer token cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// Claims holds the subset of bearer token claims the client inspects locally.
type Claims struct {
	Subject   string    // Username the token was issued for
	ExpiresAt time.Time // Zero when the token carries no expiry claim
}

// Peek decodes the registered claims of a bearer token without verifying the
// signature. Signature validation remains with the backend.
func Peek(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &registered); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims := Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}

	return claims, nil
}

// Expired reports whether the expiry claim has passed at the given time.
// Tokens without an expiry claim never expire locally.
func (c Claims) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}

	return now.After(c.ExpiresAt)
}
