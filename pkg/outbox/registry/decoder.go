package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
)

// ErrNoDecoder is returned for an event type/version nobody registered.
var ErrNoDecoder = errors.New("no decoder registered")

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders turns published envelope data back into typed payloads on the
// consumer side. Build it once at startup; it is read-only afterwards.
type Decoders struct {
	byKey map[decoderKey]func(json.RawMessage) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: map[decoderKey]func(json.RawMessage) (any, error){}}
}

// Add registers T as the payload of eventType at version. Decode returns *T.
func Add[T any](d *Decoders, eventType enums.OutboxEventType, version int) *Decoders {
	d.byKey[decoderKey{eventType, version}] = func(raw json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return out, nil
	}
	return d
}

func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	decode, ok := d.byKey[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	return decode(payload)
}

// OrderDecoders knows every order event the outbox publisher emits.
func OrderDecoders() *Decoders {
	d := NewDecoders()
	Add[payloads.OrderCreatedEvent](d, enums.EventOrderCreated, 1)
	Add[payloads.OrderStatusChangedEvent](d, enums.EventOrderStatusChanged, 1)
	Add[payloads.OrderDeletedEvent](d, enums.EventOrderDeleted, 1)
	return d
}
