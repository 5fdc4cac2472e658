package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/pagination"
)

// Service is the inbox API behind /api/v1/notifications.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult is one page of the inbox. Unread counts the whole inbox, not
// just the page.
type ListResult struct {
	Items  []NotificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
	Unread int64             `json:"unread"`
}

type NotificationDTO struct {
	ID                 uuid.UUID         `json:"id"`
	OrderID            *uuid.UUID        `json:"order_id,omitempty"`
	Status             enums.OrderStatus `json:"status"`
	Title              string            `json:"title"`
	Message            string            `json:"message"`
	Icon               string            `json:"icon"`
	Tag                string            `json:"tag"`
	RequireInteraction bool              `json:"require_interaction"`
	ReadAt             *time.Time        `json:"read_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

func toDTO(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:                 n.ID,
		OrderID:            n.OrderID,
		Status:             n.Status,
		Title:              n.Title,
		Message:            n.Message,
		Icon:               n.Icon,
		Tag:                n.Tag,
		RequireInteraction: n.RequireInteraction,
		ReadAt:             n.ReadAt,
		CreatedAt:          n.CreatedAt,
	}
}

type inbox struct {
	repo *Repository
	now  func() time.Time
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &inbox{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func requireUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	return nil
}

func (s *inbox) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := requireUser(params.UserID); err != nil {
		return nil, err
	}
	q := listQuery{
		userID:     params.UserID,
		limit:      pagination.NormalizeLimit(params.Limit),
		unreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		after, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		q.after = after
	}

	rows, next, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.UnreadCount(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	out := &ListResult{Items: make([]NotificationDTO, len(rows)), Unread: unread}
	for i, row := range rows {
		out.Items[i] = toDTO(row)
	}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// MarkRead is idempotent: reading an already read notification succeeds.
func (s *inbox) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	found, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *inbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
