// Package auth issues and verifies the bearer tokens that identify job owners.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService issues and verifies bearer tokens. The user ID a token carries
// becomes the owner of the jobs submitted with it.
// Version: 1.0
type JWTService interface {
	// GenerateToken signs a token for userID valid for the configured lifetime.
	GenerateToken(ctx context.Context, userID uuid.UUID) (string, error)

	// ValidateToken verifies the signature and time claims of tokenString.
	// Failures map onto ErrInvalidToken, ErrExpiredToken or
	// ErrTokenNotYetValid.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the verified contents of a token.
type Claims struct {
	UserID uuid.UUID `json:"uid,omitempty"`

	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
