package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFiltersByUser(t *testing.T) {
	b := NewBroker(4, nil)
	alice, bob := uuid.New(), uuid.New()

	mine := b.Subscribe(ForUser(alice))
	all := b.Subscribe(nil)
	defer mine.Unsubscribe()
	defer all.Unsubscribe()

	b.Publish(context.Background(), ChangeEvent{Type: ChangeInsert, OrderID: uuid.New(), UserID: bob})
	b.Publish(context.Background(), ChangeEvent{Type: ChangeInsert, OrderID: uuid.New(), UserID: alice})

	require.Len(t, all.Events(), 2)
	require.Len(t, mine.Events(), 1)
	ev := <-mine.Events()
	assert.Equal(t, alice, ev.UserID)
	assert.False(t, ev.At.IsZero())
}

func TestBrokerUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroker(1, nil)
	sub := b.Subscribe(nil)
	require.Equal(t, 1, b.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Zero(t, b.Len())
	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing after removal must not panic on the closed channel.
	b.Publish(context.Background(), ChangeEvent{Type: ChangeUpdate})
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker(1, nil)
	sub := b.Subscribe(nil)
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		b.Publish(context.Background(), ChangeEvent{Type: ChangeUpdate})
	}

	assert.Len(t, sub.Events(), 1)
}
