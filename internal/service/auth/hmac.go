package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/config"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

const (
	tokenIssuer     = "taskplan-api"
	minSecretLength = 32
	clockSkew       = 2 * time.Minute
)

type tokenClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

// hmacJWTService signs tokens with HS256 using a shared secret.
type hmacJWTService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

var _ JWTService = (*hmacJWTService)(nil)

// NewJWTService builds the token service from the auth configuration.
func NewJWTService(cfg config.AuthConfig) (JWTService, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	return &hmacJWTService{
		secret:   []byte(cfg.JWTSecret),
		lifetime: time.Duration(cfg.TokenLifetimeMinutes) * time.Minute,
		now:      time.Now,
	}, nil
}

func (s *hmacJWTService) GenerateToken(ctx context.Context, userID uuid.UUID) (string, error) {
	issued := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		logger.FromContext(ctx).Error("failed to sign access token", "error", err, "user_id", userID)
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *hmacJWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	log := logger.FromContext(ctx)

	parsed := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, parsed, s.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		mapped := classifyParseError(err)
		log.Debug("rejected access token", "reason", mapped.Error(), "error", err)
		return nil, mapped
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if parsed.UserID == uuid.Nil {
		log.Debug("rejected access token without user", "token_id", parsed.ID)
		return nil, ErrMissingUser
	}

	return parsed.claims(), nil
}

func (s *hmacJWTService) key(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return s.secret, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrTokenNotYetValid
	default:
		return ErrInvalidToken
	}
}

func (c *tokenClaims) claims() *Claims {
	out := &Claims{UserID: c.UserID, Subject: c.Subject, ID: c.ID}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
