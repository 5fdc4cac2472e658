package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// Profile holds the delivery details of a user. One row per user.
type Profile struct {
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;primaryKey"`
	FullName     *string             `gorm:"column:full_name"`
	Email        *string             `gorm:"column:email"`
	Phone        *string             `gorm:"column:phone"`
	Address      *string             `gorm:"column:address"`
	LocationType *enums.LocationType `gorm:"column:location_type"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
