package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/service/auth"
)

// MockJWTService is an in-memory token table. GenerateToken issues
// "token-<user id>" and ValidateToken accepts only issued or preset tokens.
// Failures maps a token string to the error ValidateToken returns for it.
type MockJWTService struct {
	mu       sync.Mutex
	issued   map[string]uuid.UUID
	Failures map[string]error
}

var _ auth.JWTService = (*MockJWTService)(nil)

// NewMockJWTService returns a MockJWTService that already accepts token for userID.
func NewMockJWTService(token string, userID uuid.UUID) *MockJWTService {
	return &MockJWTService{issued: map[string]uuid.UUID{token: userID}}
}

func (m *MockJWTService) GenerateToken(_ context.Context, userID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.issued == nil {
		m.issued = make(map[string]uuid.UUID)
	}
	token := "token-" + userID.String()
	m.issued[token] = userID
	return token, nil
}

func (m *MockJWTService) ValidateToken(_ context.Context, tokenString string) (*auth.Claims, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Failures[tokenString]; ok {
		return nil, err
	}
	userID, ok := m.issued[tokenString]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: userID, Subject: userID.String()}, nil
}
