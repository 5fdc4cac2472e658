package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Status    enums.OrderStatus `json:"status"`
	Total     decimal.Decimal   `json:"total"`
	ItemCount int               `json:"item_count"`
}

// OrderStatusChangedEvent records an admin or customer status transition.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	UserID    uuid.UUID         `json:"user_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// OrderDeletedEvent is emitted when an admin removes an order.
type OrderDeletedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	Status  enums.OrderStatus `json:"status"`
}
