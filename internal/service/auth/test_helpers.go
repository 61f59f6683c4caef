package auth

import (
	"time"

	"github.com/phrazzld/taskplan-api/internal/config"
)

// DefaultJWTConfig is an auth configuration accepted by NewJWTService.
func DefaultJWTConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "taskplan-test-secret-of-32-chars!",
		TokenLifetimeMinutes: 60,
	}
}

// NewTestJWTService returns a token service reading time from now.
// A nil now uses the wall clock.
func NewTestJWTService(secret string, lifetime time.Duration, now func() time.Time) JWTService {
	if now == nil {
		now = time.Now
	}
	return &hmacJWTService{secret: []byte(secret), lifetime: lifetime, now: now}
}
