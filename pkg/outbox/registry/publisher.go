package registry

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
)

// EventDescriptor says where an event type is routed.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row checked and decoded, ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that can never be published as stored.
// The dispatcher moves it to the DLQ instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// EventRegistry validates outbox rows before they are published, using the
// same decoders consumers use so nothing undecodable leaves the service.
type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *Decoders
}

// NewEventRegistry routes every order event to topic.
func NewEventRegistry(topic string) (*EventRegistry, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("orders topic is required")
	}
	reg := &EventRegistry{
		routes:   map[enums.OutboxEventType]EventDescriptor{},
		decoders: OrderDecoders(),
	}
	for _, et := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderStatusChanged,
		enums.EventOrderDeleted,
	} {
		reg.routes[et] = EventDescriptor{EventType: et, AggregateType: enums.AggregateOrder, Topic: topic}
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
