package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// Notification stores an order status notification addressed to a user.
type Notification struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID            *uuid.UUID        `gorm:"column:order_id;type:uuid"`
	Status             enums.OrderStatus `gorm:"column:status;not null"`
	Title              string            `gorm:"column:title;type:text;not null"`
	Message            string            `gorm:"column:message;type:text;not null"`
	Icon               string            `gorm:"column:icon;not null"`
	Tag                string            `gorm:"column:tag;not null"`
	RequireInteraction bool              `gorm:"column:require_interaction;not null"`
	ReadAt             *time.Time        `gorm:"column:read_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
