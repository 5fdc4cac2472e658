package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

type ItemDTO struct {
	ID         uuid.UUID       `json:"id"`
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type ZoneSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	CustomerName    *string             `json:"customer_name,omitempty"`
	CustomerPhone   string              `json:"customer_phone"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	CouponCode      *string             `json:"coupon_code,omitempty"`
	DeliveryAddress string              `json:"delivery_address"`
	LocationType    enums.LocationType  `json:"location_type"`
	Zone            *ZoneSummary        `json:"zone,omitempty"`
	DeliveryTime    *string             `json:"delivery_time,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Notes           *string             `json:"notes,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	Items           []ItemDTO           `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ListParams filters a keyset page of orders. A nil UserID lists every user.
type ListParams struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Limit  int
	Cursor string
}

type ListResult struct {
	Items  []OrderDTO `json:"items"`
	Cursor string     `json:"cursor"`
}

// UpdateStatusRequest is the admin status change body.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed preparing delivering delivered cancelled"`
}

func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Discount:        o.Discount,
		Total:           o.Total,
		CouponCode:      o.CouponCode,
		DeliveryAddress: o.DeliveryAddress,
		LocationType:    o.LocationType,
		DeliveryTime:    o.DeliveryTime,
		PaymentMethod:   o.PaymentMethod,
		Notes:           o.Notes,
		Status:          o.Status,
		Items:           make([]ItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Zone != nil {
		dto.Zone = &ZoneSummary{ID: o.Zone.ID, Name: o.Zone.Name}
	}
	for _, it := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		})
	}
	return dto
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, o := range rows {
		out = append(out, FromModel(o))
	}
	return out
}
