package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/pagination"
)

// Repository stores the per-user notification inbox.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type listQuery struct {
	userID     uuid.UUID
	limit      int
	after      *pagination.Cursor
	unreadOnly bool
}

func (r *Repository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *Repository) Create(ctx context.Context, row *models.Notification) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// List pages newest first, breaking created_at ties by id.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Notification, *pagination.Cursor, error) {
	tx := r.inbox(ctx, q.userID)
	if q.unreadOnly {
		tx = tx.Where("read_at IS NULL")
	}
	if c := q.after; c != nil {
		tx = tx.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	var rows []models.Notification
	err := tx.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(q.limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, q.limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *Repository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.inbox(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// MarkRead stamps read_at the first time only. found is false when the
// notification does not exist or belongs to someone else.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID, now time.Time) (found bool, err error) {
	var row models.Notification
	err = r.inbox(ctx, userID).Select("id", "read_at").Where("id = ?", id).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	case row.ReadAt != nil:
		return true, nil
	}
	err = r.inbox(ctx, userID).Where("id = ? AND read_at IS NULL", id).UpdateColumn("read_at", now).Error
	return err == nil, err
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore prunes notifications read before cutoff. Unread rows
// survive at any age.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL").
		Where("read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
