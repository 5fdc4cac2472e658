package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
)

func emitOrderCreated(t *testing.T, db *gorm.DB, svc *Service, orderID uuid.UUID) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.OrderCreatedEvent{OrderID: orderID, Status: enums.OrderStatusPending},
		})
	})
	require.NoError(t, err)
}

func TestServiceEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)
	orderID := uuid.New()

	emitOrderCreated(t, db, svc, orderID)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	assert.Equal(t, enums.EventOrderCreated, row.EventType)
	assert.Equal(t, orderID, row.AggregateID)
	assert.Nil(t, row.PublishedAt)

	envelope, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.Contains(t, string(envelope.Data), orderID.String())
}

func TestServiceEmitRejectsUnknownTypes(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.OutboxEventType("menu_changed"),
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	assert.Error(t, err)

	err = svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	assert.Error(t, err)
}

func TestServiceEmitRollsBackWithCaller(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          payloads.OrderDeletedEvent{},
		}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	first, second := uuid.New(), uuid.New()
	emitOrderCreated(t, db, svc, first)
	emitOrderCreated(t, db, svc, second)

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("broker down")))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "broker down", *rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, rows[0].ID, errors.New("gave up"), 3))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	db := dbtest.Open(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	emitOrderCreated(t, db, svc, uuid.New())
	emitOrderCreated(t, db, svc, uuid.New())

	var rows []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&rows).Error)
	old := time.Now().UTC().Add(-96 * time.Hour)
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("id = ?", rows[0].ID).Update("published_at", old).Error)

	deleted, err := repo.DeletePublishedBefore(nil, time.Now().UTC().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}

func TestTruncateError(t *testing.T) {
	long := make([]byte, maxLastErrorLen+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateError(errors.New(string(long))), maxLastErrorLen)
	assert.Equal(t, "", truncateError(nil))
}
