package menu

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

// Repository wraps menu item and category persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListCategories returns categories by sort order.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := r.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListItems returns every menu item by name, available or not.
func (r *Repository) ListItems(ctx context.Context) ([]models.MenuItem, error) {
	var out []models.MenuItem
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindItem loads a single item.
func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItems loads the items matching ids; missing ids are simply absent.
func (r *Repository) FindItems(ctx context.Context, ids []uuid.UUID) ([]models.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.MenuItem
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) CreateItem(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) UpdateItem(ctx context.Context, item *models.MenuItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem reports gorm.ErrRecordNotFound when nothing was removed.
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.MenuItem{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var cat models.Category
	if err := r.db.WithContext(ctx).First(&cat, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *Repository) CreateCategory(ctx context.Context, cat *models.Category) error {
	return r.db.WithContext(ctx).Create(cat).Error
}

func (r *Repository) UpdateCategory(ctx context.Context, cat *models.Category) error {
	return r.db.WithContext(ctx).Save(cat).Error
}

// SetImageURL points an item at a new image without touching its other columns.
func (r *Repository) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	res := r.db.WithContext(ctx).
		Model(&models.MenuItem{}).
		Where("id = ?", id).
		UpdateColumn("image_url", url)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
