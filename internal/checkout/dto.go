package checkout

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/internal/orders"
	pkgcheckout "github.com/angelmondragon/foodorder-backend/pkg/checkout"
)

// SubmitRequest is the body of POST /api/v1/checkout.
type SubmitRequest struct {
	PaymentMethod string    `json:"payment_method" validate:"required,oneof=card cash"`
	ZoneID        uuid.UUID `json:"zone_id" validate:"required"`
	DeliveryTime  *string   `json:"delivery_time" validate:"omitempty,max=40"`
	Notes         *string   `json:"notes" validate:"omitempty,max=500"`
	CouponCode    *string   `json:"coupon_code" validate:"omitempty,max=32"`
}

// QuoteRequest prices the current cart without placing an order.
type QuoteRequest struct {
	ZoneID     *uuid.UUID `json:"zone_id"`
	CouponCode *string    `json:"coupon_code" validate:"omitempty,max=32"`
}

type Quote struct {
	pkgcheckout.Totals
	CouponCode string `json:"coupon_code,omitempty"`
	ItemCount  int    `json:"item_count"`
}

// Result is returned by a successful submission.
type Result struct {
	Order    orders.OrderDTO `json:"order"`
	Redirect string          `json:"redirect"`
}
