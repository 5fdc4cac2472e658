package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodorder-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

func TestDeleteReadBeforeKeepsUnreadAndRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t))
	userID := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	oldRead := now.Add(-40 * 24 * time.Hour)
	recentRead := now.Add(-time.Hour)

	for _, readAt := range []*time.Time{&oldRead, &recentRead, nil} {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:  userID,
			Status:  enums.OrderStatusConfirmed,
			Title:   "Order Update",
			Message: "confirmed",
			Icon:    "✅",
			Tag:     "order-x",
			ReadAt:  readAt,
		}))
	}

	deleted, err := repo.DeleteReadBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	left, _, err := repo.List(ctx, listQuery{userID: userID, limit: 10})
	require.NoError(t, err)
	assert.Len(t, left, 2)
}
