package zones

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.DeliveryZone, error) {
	query := r.db.WithContext(ctx).Model(&models.DeliveryZone{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var out []models.DeliveryZone
	if err := query.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	var zone models.DeliveryZone
	if err := r.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

func (r *Repository) Create(ctx context.Context, zone *models.DeliveryZone) error {
	return r.db.WithContext(ctx).Create(zone).Error
}

func (r *Repository) Update(ctx context.Context, zone *models.DeliveryZone) error {
	return r.db.WithContext(ctx).Save(zone).Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.DeliveryZone{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
