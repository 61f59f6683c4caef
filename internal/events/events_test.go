package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeEvent(t *testing.T) {
	type taskData struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}

	target := uuid.New()
	initiator := uuid.New()
	data := taskData{ID: target, Status: "in_progress"}

	event, err := NewChangeEvent(TopicTasks, Message{
		Action:    ActionUpdate,
		Target:    target,
		Initiator: initiator,
		Data:      data,
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "tasks", event.Topic)
	assert.Equal(t, ActionUpdate, event.Action)
	assert.Equal(t, target, event.Target)
	assert.Equal(t, initiator, event.Initiator)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded taskData
	require.NoError(t, event.UnmarshalData(&decoded))
	assert.Equal(t, data, decoded)
}

func TestNewChangeEvent_NoData(t *testing.T) {
	event, err := NewChangeEvent(TopicTasks, Message{Action: ActionUpdate, Target: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, event.Data)
}

func TestNewChangeEvent_UnserializableData(t *testing.T) {
	_, err := NewChangeEvent(TopicTasks, Message{Action: ActionUpdate, Data: make(chan int)})
	assert.Error(t, err)
}

// MockEventHandler records deliveries and returns HandlerError.
type MockEventHandler struct {
	mu sync.Mutex
	// The last event received by this handler
	LastEvent *ChangeEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

func (h *MockEventHandler) HandleEvent(ctx context.Context, event *ChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func (h *MockEventHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.HandledCount
}
