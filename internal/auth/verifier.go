// Package auth resolves the calling user from a bearer token.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a token is missing, malformed or expired.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the identity carried by a verified token.
type Claims struct {
	Subject string
	Email   string
}

// Verifier validates a raw token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}
