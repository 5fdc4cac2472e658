package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListQuery) ([]models.Order, *pagination.Cursor, error)
	ListForFeed(ctx context.Context, filter FeedFilter) ([]models.Order, error)
	ListSince(ctx context.Context, since *time.Time) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

// ListQuery is the decoded form of ListParams.
type ListQuery struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

// FeedFilter selects the rows a feed renders.
type FeedFilter struct {
	UserID          *uuid.UUID
	ExcludeStatuses []enums.OrderStatus
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the header only; items are written by CreateItems.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items", "Zone").Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// DeleteOrder removes the items then the header. It reports
// gorm.ErrRecordNotFound when no header existed.
func (r *repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Preload("Zone").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.Order, *pagination.Cursor, error) {
	query := r.withDetails(ctx)
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)",
			params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

func (r *repository) ListForFeed(ctx context.Context, filter FeedFilter) ([]models.Order, error) {
	query := r.withDetails(ctx)
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if len(filter.ExcludeStatuses) > 0 {
		query = query.Where("status NOT IN ?", filter.ExcludeStatuses)
	}
	var rows []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.MaxLimit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListSince returns every order created at or after since, or all orders when
// since is nil.
func (r *repository) ListSince(ctx context.Context, since *time.Time) ([]models.Order, error) {
	query := r.withDetails(ctx)
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}
	var rows []models.Order
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves an order from one status to another. It reports false
// when the order was no longer in the expected status.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Preload("Zone")
}
