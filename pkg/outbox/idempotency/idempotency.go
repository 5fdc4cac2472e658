// Package idempotency suppresses duplicate deliveries of outbox events to a
// consumer. Transports deliver at least once; a claim marks an event id as
// handled for a TTL.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the redis surface a Manager needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager claims event ids for one consumer. Keys look like
// fo:idempotency:evt:<consumer>:<event_id>.
type Manager struct {
	store    Store
	consumer string
	ttl      time.Duration
}

func NewManager(store Store, consumer string, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if consumer == "" {
		return nil, errors.New("consumer name is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Manager{store: store, consumer: consumer, ttl: ttl}, nil
}

// Claim reports whether eventID is new for this consumer, recording it if so.
func (m *Manager) Claim(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if eventID == uuid.Nil {
		return false, errors.New("event id is required")
	}
	return m.store.SetNX(ctx, m.key(eventID), time.Now().UTC().Format(time.RFC3339), m.ttl)
}

// Release forgets a claim so a redelivery is handled again. Used when the
// consumer failed after claiming.
func (m *Manager) Release(ctx context.Context, eventID uuid.UUID) error {
	return m.store.Del(ctx, m.key(eventID))
}

func (m *Manager) key(eventID uuid.UUID) string {
	return m.store.IdempotencyKey("evt:"+m.consumer, eventID.String())
}
