package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent announces that an order row changed.
type ChangeEvent struct {
	Type    ChangeType        `json:"type"`
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	Status  enums.OrderStatus `json:"status"`
	At      time.Time         `json:"at"`
}

// Filter selects the events a subscription receives. Nil accepts everything.
type Filter func(ChangeEvent) bool

// ForUser accepts events about one user's orders.
func ForUser(userID uuid.UUID) Filter {
	return func(ev ChangeEvent) bool { return ev.UserID == userID }
}

// Publisher is the write side of the broker.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent)
}

// Broker fans order changes out to in-process subscribers. Each subscriber has
// its own buffered channel; a full buffer drops the event for that subscriber.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	next   uint64
	buffer int
	logg   *logger.Logger
}

func NewBroker(buffer int, logg *logger.Logger) *Broker {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broker{subs: make(map[uint64]*Subscription), buffer: buffer, logg: logg}
}

// Subscription is one registration on the broker.
type Subscription struct {
	id     uint64
	broker *Broker
	filter Filter
	events chan ChangeEvent
	once   sync.Once
}

// Events is closed once the subscription is removed.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Unsubscribe removes the subscription. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		delete(b.subs, s.id)
		b.mu.Unlock()
		close(s.events)
	})
}

func (b *Broker) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	sub := &Subscription{
		id:     b.next,
		broker: b,
		filter: filter,
		events: make(chan ChangeEvent, b.buffer),
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *Broker) Publish(ctx context.Context, ev ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			if b.logg != nil {
				b.logg.Warn(b.logg.WithOrderID(ctx, ev.OrderID.String()), "order change dropped for slow subscriber")
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
