// Package auth issues and verifies the bearer tokens that identify the
// acting user of every API request.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingToken     = errors.New("authentication token is missing")
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingUser is returned for a correctly signed token without a uid claim.
	ErrMissingUser = errors.New("authentication token has no user")
)

// JWTService signs and verifies access tokens.
type JWTService interface {
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken verifies signature, issuer and lifetime of tokenString.
	// Failures are reported as one of the package error values.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    uuid.UUID
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
