package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DeliveryZone is a named service area charging a flat delivery fee.
type DeliveryZone struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	DeliveryFee decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (z *DeliveryZone) BeforeCreate(*gorm.DB) error {
	assignID(&z.ID)
	return nil
}
