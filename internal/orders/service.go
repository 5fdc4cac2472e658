package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodorder-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies who is acting on an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// Service exposes order reads for customers and admins and the status
// workflow.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// Get returns an order; a non-nil owner restricts it to that user's orders.
	Get(ctx context.Context, orderID uuid.UUID, owner *uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	publisher Publisher
	logg      *logger.Logger
}

// NewService wires the orders service. publisher may be nil when changes reach
// the broker through a Listener instead.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, publisher Publisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tx runner required")
	}
	if outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, publisher: publisher, logg: logg}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListQuery{UserID: params.UserID, Status: params.Status, Limit: params.Limit}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	result := &ListResult{Items: fromModels(rows)}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, owner *uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, orderID, owner)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order)
	return &dto, nil
}

// Cancel lets a customer withdraw an order that has not been confirmed yet.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	order, err := s.load(ctx, orderID, &userID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
			WithDetails(map[string]any{"status": order.Status})
	}
	return s.transition(ctx, Actor{UserID: userID, Role: enums.UserRoleCustomer}, order, enums.OrderStatusCancelled)
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	order, err := s.load(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	if order.Status == status {
		dto := FromModel(*order)
		return &dto, nil
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
			WithDetails(map[string]any{"from": order.Status, "to": status})
	}
	return s.transition(ctx, actor, order, status)
}

func (s *service) transition(ctx context.Context, actor Actor, order *models.Order, to enums.OrderStatus) (*OrderDTO, error) {
	from := order.Status
	now := time.Now().UTC()
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		updated, err := s.repo.WithTx(tx).UpdateStatus(ctx, order.ID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   order.ID,
				UserID:    order.UserID,
				From:      from,
				To:        to,
				ChangedAt: now,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	order.Status = to
	order.UpdatedAt = now
	s.publish(ctx, ChangeEvent{Type: ChangeUpdate, OrderID: order.ID, UserID: order.UserID, Status: to, At: now})
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "from": from, "to": to})
		s.logg.Info(logCtx, "order status changed")
	}
	dto := FromModel(*order)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	order, err := s.load(ctx, orderID, nil)
	if err != nil {
		return err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).DeleteOrder(ctx, order.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data:          payloads.OrderDeletedEvent{OrderID: order.ID, UserID: order.UserID, Status: order.Status},
		})
	})
	if err != nil {
		return err
	}
	s.publish(ctx, ChangeEvent{Type: ChangeDelete, OrderID: order.ID, UserID: order.UserID, Status: order.Status})
	return nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID, owner *uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if owner != nil && order.UserID != *owner {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) publish(ctx context.Context, ev ChangeEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, ev)
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
