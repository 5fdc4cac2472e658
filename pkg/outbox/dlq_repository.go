package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

const maxDLQErrorLen = 1024

// ErrDLQEntryNotFound is returned when no dead letter exists for an event.
var ErrDLQEntryNotFound = errors.New("dead letter not found")

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// List returns the newest dead letters first.
func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// DeleteFailedBefore drops dead letters that failed before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

// RequeueTx moves the dead letter of eventID back into the outbox as a fresh
// event with zero attempts. The original event row keeps its terminal state.
func (r *DLQRepository) RequeueTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var entry models.OutboxDLQ
	if err := tx.Where("event_id = ?", eventID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDLQEntryNotFound
		}
		return nil, err
	}

	event := models.OutboxEvent{
		EventType:     entry.EventType,
		AggregateType: entry.AggregateType,
		AggregateID:   entry.AggregateID,
		Payload:       entry.Payload,
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("requeue event: %w", err)
	}
	if err := tx.Delete(&models.OutboxDLQ{}, "id = ?", entry.ID).Error; err != nil {
		return nil, fmt.Errorf("delete dead letter: %w", err)
	}
	return &event, nil
}
