package orders

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
)

type FeedScope string

const (
	ScopeUser  FeedScope = "user"
	ScopeAdmin FeedScope = "admin"
)

// Notice is the user-facing message raised for a status change.
type Notice struct {
	OrderID            uuid.UUID         `json:"order_id"`
	Status             enums.OrderStatus `json:"status"`
	Title              string            `json:"title"`
	Message            string            `json:"message"`
	Icon               string            `json:"icon"`
	Tag                string            `json:"tag"`
	RequireInteraction bool              `json:"require_interaction"`
}

// Notifier turns a status change into a notice.
type Notifier interface {
	NotifyStatus(ctx context.Context, order OrderDTO, from, to enums.OrderStatus) (Notice, error)
}

type feedSource interface {
	ListForFeed(ctx context.Context, filter FeedFilter) ([]models.Order, error)
}

type subscriber interface {
	Subscribe(filter Filter) *Subscription
}

type FeedOptions struct {
	Scope  FeedScope
	UserID uuid.UUID
	// Notifier is called for status changes on user feeds. Nil disables
	// notifications.
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
}

// Feed keeps a live list of orders. Every change event triggers a full
// refetch; user feeds diff the refetch against the previous one and raise a
// notice for each status change.
type Feed struct {
	source feedSource
	broker subscriber
	opts   FeedOptions

	snapshots chan []OrderDTO
	notices   chan Notice
	done      chan struct{}

	// mu guards closed and prev; it is held across notification so that no
	// notice is raised once Close has returned.
	mu     sync.Mutex
	closed bool
	prev   map[uuid.UUID]enums.OrderStatus
	sub    *Subscription
	once   sync.Once
}

func NewFeed(source feedSource, broker subscriber, opts FeedOptions) *Feed {
	if opts.Scope == "" {
		opts.Scope = ScopeUser
	}
	return &Feed{
		source:    source,
		broker:    broker,
		opts:      opts,
		snapshots: make(chan []OrderDTO, 1),
		notices:   make(chan Notice, 8),
		done:      make(chan struct{}),
	}
}

// Snapshots carries the latest order list. Only the newest unread snapshot is
// kept. The channel closes after Close.
func (f *Feed) Snapshots() <-chan []OrderDTO { return f.snapshots }

// Notices carries status change notices for user feeds.
func (f *Feed) Notices() <-chan Notice { return f.notices }

// Start renders the initial list and begins following changes until Close or
// until ctx ends.
func (f *Feed) Start(ctx context.Context) error {
	rows, err := f.source.ListForFeed(ctx, f.filter())
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(f.snapshots)
		close(f.notices)
		return nil
	}
	f.prev = statusIndex(rows)
	var filter Filter
	if f.opts.Scope == ScopeUser {
		filter = ForUser(f.opts.UserID)
	}
	f.sub = f.broker.Subscribe(filter)
	f.mu.Unlock()

	f.emit(fromModels(rows))
	f.opts.Metrics.FeedOpened(string(f.opts.Scope))

	go f.run(ctx, f.sub)
	return nil
}

// Close stops the feed. It is safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		sub := f.sub
		f.mu.Unlock()
		close(f.done)
		if sub != nil {
			sub.Unsubscribe()
			f.opts.Metrics.FeedClosed(string(f.opts.Scope))
		}
	})
}

func (f *Feed) run(ctx context.Context, sub *Subscription) {
	defer close(f.notices)
	defer close(f.snapshots)
	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			f.Close()
			return
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
			f.refresh(ctx)
		}
	}
}

func (f *Feed) refresh(ctx context.Context) {
	rows, err := f.source.ListForFeed(ctx, f.filter())
	if err != nil {
		if f.opts.Logger != nil {
			f.opts.Logger.Warn(f.opts.Logger.WithField(ctx, "reason", err.Error()), "order feed refetch failed")
		}
		return
	}
	current := fromModels(rows)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	prev := f.prev
	f.prev = statusIndex(rows)
	if f.opts.Scope == ScopeUser && f.opts.Notifier != nil {
		for _, order := range current {
			old, seen := prev[order.ID]
			if !seen || old == order.Status {
				continue
			}
			notice, err := f.opts.Notifier.NotifyStatus(ctx, order, old, order.Status)
			if err != nil {
				if f.opts.Logger != nil {
					f.opts.Logger.Error(f.opts.Logger.WithOrderID(ctx, order.ID.String()), "status notification failed", err)
				}
				continue
			}
			select {
			case f.notices <- notice:
			default:
			}
		}
	}
	f.mu.Unlock()

	f.emit(current)
}

// emit replaces any unread snapshot with the newest one.
func (f *Feed) emit(snapshot []OrderDTO) {
	select {
	case f.snapshots <- snapshot:
		return
	default:
	}
	select {
	case <-f.snapshots:
	default:
	}
	select {
	case f.snapshots <- snapshot:
	default:
	}
}

func (f *Feed) filter() FeedFilter {
	if f.opts.Scope == ScopeAdmin {
		return FeedFilter{ExcludeStatuses: []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusDelivered}}
	}
	id := f.opts.UserID
	return FeedFilter{UserID: &id}
}

func statusIndex(rows []models.Order) map[uuid.UUID]enums.OrderStatus {
	out := make(map[uuid.UUID]enums.OrderStatus, len(rows))
	for _, o := range rows {
		out[o.ID] = o.Status
	}
	return out
}
