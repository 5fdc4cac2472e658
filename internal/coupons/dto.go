package coupons

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// Request is the admin create/update body.
type Request struct {
	Code          string          `json:"code" validate:"required,max=32"`
	DiscountType  string          `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	MinOrder      decimal.Decimal `json:"min_order"`
	IsActive      *bool           `json:"is_active"`
	ExpiresAt     *time.Time      `json:"expires_at"`
}

type CouponDTO struct {
	ID            uuid.UUID          `json:"id"`
	Code          string             `json:"code"`
	DiscountType  enums.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	MinOrder      decimal.Decimal    `json:"min_order"`
	IsActive      bool               `json:"is_active"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Discount is the outcome of applying a code to a subtotal.
type Discount struct {
	Code   string          `json:"code,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

func FromModel(c models.Coupon) CouponDTO {
	return CouponDTO{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MinOrder:      c.MinOrder,
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		CreatedAt:     c.CreatedAt,
	}
}
