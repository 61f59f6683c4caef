package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicTasks is the notification topic for task changes.
const TopicTasks = "tasks"

// Action names the kind of change a notification describes.
type Action string

const (
	// ActionUpdate is published whenever a task changes state.
	ActionUpdate Action = "UPDATE"
)

// Message is what services hand to a Publisher. Data is serialized when
// the message becomes a ChangeEvent.
type Message struct {
	Action    Action
	Target    uuid.UUID
	Initiator uuid.UUID
	Data      any
}

// ChangeEvent is a serialized change notification ready for delivery.
type ChangeEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Topic is the channel subscribers listen on, e.g. "tasks"
	Topic string `json:"topic"`

	Action Action `json:"action"`

	// Target is the id of the changed entity
	Target uuid.UUID `json:"target"`

	// Initiator is the user whose operation caused the change
	Initiator uuid.UUID `json:"initiator"`

	// Data carries the changed entity serialized as JSON
	Data json.RawMessage `json:"data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalData decodes the event data into the provided structure.
func (e *ChangeEvent) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// NewChangeEvent creates a ChangeEvent for the given topic and message.
func NewChangeEvent(topic string, msg Message) (*ChangeEvent, error) {
	var data json.RawMessage
	if msg.Data != nil {
		b, err := json.Marshal(msg.Data)
		if err != nil {
			return nil, err
		}
		data = b
	}

	return &ChangeEvent{
		ID:        uuid.New(),
		Topic:     topic,
		Action:    msg.Action,
		Target:    msg.Target,
		Initiator: msg.Initiator,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ChangeEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ChangeEvent) error
}

// Publisher is the port services use to announce changes. Implementations
// must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg Message) error
}
