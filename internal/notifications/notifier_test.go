package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

func TestBuildNotice(t *testing.T) {
	order := orders.OrderDTO{ID: uuid.MustParse("6f1c2a9e-4d3b-4a8e-9f00-0123456789ab")}
	cases := []struct {
		status      enums.OrderStatus
		icon        string
		interaction bool
	}{
		{enums.OrderStatusConfirmed, "✅", false},
		{enums.OrderStatusPreparing, "👨‍🍳", false},
		{enums.OrderStatusDelivering, "🚗", false},
		{enums.OrderStatusDelivered, "🎉", true},
		{enums.OrderStatusCancelled, "❌", false},
		{enums.OrderStatusPending, "📦", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			notice := BuildNotice(order, tc.status)
			assert.Equal(t, tc.icon, notice.Icon)
			assert.Equal(t, tc.icon+" Order Update", notice.Title)
			assert.Equal(t, "order-6f1c2a9e-4d3b-4a8e-9f00-0123456789ab", notice.Tag)
			assert.Equal(t, tc.interaction, notice.RequireInteraction)
			assert.Contains(t, notice.Message, "#6f1c2a9e")
		})
	}
}

func TestNotifierPersistsAndLists(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	notifier, err := NewNotifier(repo, nil)
	require.NoError(t, err)
	svc, err := NewService(repo)
	require.NoError(t, err)

	userID := uuid.New()
	order := orders.OrderDTO{ID: uuid.New(), UserID: userID}
	_, err = notifier.NotifyStatus(ctx, order, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	notice, err := notifier.NotifyStatus(ctx, order, enums.OrderStatusDelivering, enums.OrderStatusDelivered)
	require.NoError(t, err)
	assert.True(t, notice.RequireInteraction)

	res, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	other, err := svc.List(ctx, ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, other.Items)

	require.NoError(t, svc.MarkRead(ctx, userID, res.Items[0].ID))
	// a second read still finds the row
	require.NoError(t, svc.MarkRead(ctx, userID, res.Items[0].ID))

	count, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	unread, err := svc.List(ctx, ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}
