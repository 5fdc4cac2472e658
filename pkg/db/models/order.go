package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// Order is the header row of a placed order. Money columns are snapshots taken
// at submission: Total = Subtotal - Discount + DeliveryFee.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CustomerName    *string             `gorm:"column:customer_name"`
	CustomerPhone   string              `gorm:"column:customer_phone;not null"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	CouponCode      *string             `gorm:"column:coupon_code"`
	DeliveryAddress string              `gorm:"column:delivery_address;not null"`
	LocationType    enums.LocationType  `gorm:"column:location_type;not null"`
	DeliveryZoneID  *uuid.UUID          `gorm:"column:delivery_zone_id;type:uuid"`
	DeliveryTime    *string             `gorm:"column:delivery_time"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null"`
	Notes           *string             `gorm:"column:notes"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'pending'"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem   `gorm:"foreignKey:OrderID"`
	Zone  *DeliveryZone `gorm:"foreignKey:DeliveryZoneID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem is an immutable line of an order with its price snapshot.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	MenuItemID uuid.UUID       `gorm:"column:menu_item_id;type:uuid;not null"`
	Name       string          `gorm:"column:name;not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
