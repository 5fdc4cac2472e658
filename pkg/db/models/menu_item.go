package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MenuItem is a dish that can be added to a cart.
type MenuItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Description *string         `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	ImageURL    *string         `gorm:"column:image_url"`
	CategoryID  *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	IsAvailable bool            `gorm:"column:is_available;not null"`
	Badge       *string         `gorm:"column:badge"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *MenuItem) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
