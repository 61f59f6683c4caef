package shared

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID in original context")

	ctxWithTrace := SetTraceID(ctx)
	traceID := GetTraceID(ctxWithTrace)
	assert.Len(t, traceID, TraceIDLength)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err, "Expected valid hex string")

	assert.Empty(t, GetTraceID(ctx), "Expected original context to remain unchanged")
	assert.Equal(t, "abc", GetTraceID(WithTraceID(ctx, "abc")))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123) // Not a string
	assert.Empty(t, GetTraceID(ctx), "Expected empty trace ID when context has invalid type")
}

func TestNewTraceIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for i := 0; i < iterations; i++ {
		id := NewTraceID()
		assert.False(t, seen[id], "Expected all trace IDs to be unique")
		seen[id] = true
	}
	assert.Len(t, seen, iterations)
}

func TestUserIDFromContext(t *testing.T) {
	userID := uuid.New()

	got, ok := UserIDFromContext(WithUserID(context.Background(), userID))
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	_, ok = UserIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserIDFromContext(WithUserID(context.Background(), uuid.Nil))
	assert.False(t, ok, "nil user id is treated as missing")
}
