package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownType = errors.New("events: unknown event type")
	ErrMalformed   = errors.New("events: malformed envelope")
)

// Envelope is the wire form of an event. Version is the aggregate version
// after the change, so consumers can discard stale deliveries.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   Type            `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Version     int64           `json:"version"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func NewEnvelope(evt Event, version int64, occurredAt time.Time) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: encode %s: %w", evt.EventType(), err)
	}
	return Envelope{
		EventID:     uuid.NewString(),
		EventType:   evt.EventType(),
		AggregateID: evt.AggregateID(),
		Version:     version,
		OccurredAt:  occurredAt.UTC(),
		Payload:     payload,
	}, nil
}

// Parse decodes raw envelope JSON and checks the fields every consumer relies on.
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.EventID == "" || env.EventType == "" || env.AggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: missing event_id, event_type or aggregate_id", ErrMalformed)
	}
	if len(env.Payload) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	return env, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode returns the typed variant carried by the envelope.
func (e Envelope) Decode() (Event, error) {
	switch e.EventType {
	case TypeEmployeeCreated:
		return decodeAs[EmployeeCreated](e.Payload)
	case TypeEmployeeUpdated:
		return decodeAs[EmployeeUpdated](e.Payload)
	case TypeEmployeeDeactivated:
		return decodeAs[EmployeeDeactivated](e.Payload)
	case TypeProjectCreated:
		return decodeAs[ProjectCreated](e.Payload)
	case TypeProjectUpdated:
		return decodeAs[ProjectUpdated](e.Payload)
	case TypeProjectCompleted:
		return decodeAs[ProjectCompleted](e.Payload)
	case TypeAssignmentCreated:
		return decodeAs[AssignmentCreated](e.Payload)
	case TypeAssignmentRemoved:
		return decodeAs[AssignmentRemoved](e.Payload)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, e.EventType)
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}
	return v, nil
}

// KnownTypes lists every event type Decode understands.
func KnownTypes() []Type {
	return []Type{
		TypeEmployeeCreated,
		TypeEmployeeUpdated,
		TypeEmployeeDeactivated,
		TypeProjectCreated,
		TypeProjectUpdated,
		TypeProjectCompleted,
		TypeAssignmentCreated,
		TypeAssignmentRemoved,
	}
}
