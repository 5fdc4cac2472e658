package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// UserRole grants a role to a user outside of the user's own metadata.
type UserRole struct {
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey"`
	Role      enums.UserRole `gorm:"column:role;primaryKey"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}
