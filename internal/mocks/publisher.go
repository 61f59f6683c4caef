package mocks

import (
	"context"

	"github.com/phrazzld/taskplan-api/internal/events"
	"github.com/stretchr/testify/mock"
)

var _ events.Publisher = (*MockPublisher)(nil)

// MockPublisher mocks events.Publisher
type MockPublisher struct {
	mock.Mock
}

// NewMockPublisher returns a publisher that accepts every message.
func NewMockPublisher() *MockPublisher {
	p := &MockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return p
}

// Publish implements events.Publisher.
func (m *MockPublisher) Publish(ctx context.Context, topic string, msg events.Message) error {
	args := m.Called(ctx, topic, msg)
	return args.Error(0)
}

// Messages returns the messages published on topic, in order.
func (m *MockPublisher) Messages(topic string) []events.Message {
	var out []events.Message
	for _, call := range m.Calls {
		if call.Method == "Publish" && call.Arguments.String(1) == topic {
			out = append(out, call.Arguments.Get(2).(events.Message))
		}
	}
	return out
}
