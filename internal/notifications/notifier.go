package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

const noticeTitle = "Order Update"

var statusIcons = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed:  "✅",
	enums.OrderStatusPreparing:  "👨‍🍳",
	enums.OrderStatusDelivering: "🚗",
	enums.OrderStatusDelivered:  "🎉",
	enums.OrderStatusCancelled:  "❌",
}

const defaultIcon = "📦"

var statusMessages = map[enums.OrderStatus]string{
	enums.OrderStatusPending:    "We received your order #%s.",
	enums.OrderStatusConfirmed:  "Your order #%s has been confirmed.",
	enums.OrderStatusPreparing:  "The kitchen is preparing order #%s.",
	enums.OrderStatusDelivering: "Order #%s is on its way.",
	enums.OrderStatusDelivered:  "Order #%s was delivered. Enjoy your meal!",
	enums.OrderStatusCancelled:  "Order #%s was cancelled.",
}

// BuildNotice renders the notice for an order entering status.
func BuildNotice(order orders.OrderDTO, status enums.OrderStatus) orders.Notice {
	icon, ok := statusIcons[status]
	if !ok {
		icon = defaultIcon
	}
	format, ok := statusMessages[status]
	if !ok {
		format = "Order #%s was updated."
	}
	return orders.Notice{
		OrderID:            order.ID,
		Status:             status,
		Title:              icon + " " + noticeTitle,
		Message:            fmt.Sprintf(format, shortID(order)),
		Icon:               icon,
		Tag:                "order-" + order.ID.String(),
		RequireInteraction: status == enums.OrderStatusDelivered,
	}
}

func shortID(order orders.OrderDTO) string {
	return order.ID.String()[:8]
}

// Notifier persists a notification row for each status change seen by a
// user feed.
type Notifier struct {
	repo *Repository
	logg *logger.Logger
}

func NewNotifier(repo *Repository, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &Notifier{repo: repo, logg: logg}, nil
}

func (n *Notifier) NotifyStatus(ctx context.Context, order orders.OrderDTO, from, to enums.OrderStatus) (orders.Notice, error) {
	notice := BuildNotice(order, to)
	orderID := order.ID
	row := &models.Notification{
		UserID:             order.UserID,
		OrderID:            &orderID,
		Status:             to,
		Title:              notice.Title,
		Message:            notice.Message,
		Icon:               notice.Icon,
		Tag:                notice.Tag,
		RequireInteraction: notice.RequireInteraction,
	}
	if err := n.repo.Create(ctx, row); err != nil {
		return notice, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store notification")
	}
	if n.logg != nil {
		logCtx := n.logg.WithFields(n.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		n.logg.Debug(logCtx, "status notification stored")
	}
	return notice, nil
}
