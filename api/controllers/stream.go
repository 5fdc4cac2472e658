package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/api/responses"
	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
)

const (
	eventOrders       = "orders"
	eventNotification = "notification"
)

var streamHeartbeat = 25 * time.Second

type orderFeedSource interface {
	ListForFeed(ctx context.Context, filter orders.FeedFilter) ([]models.Order, error)
}

type orderSubscriber interface {
	Subscribe(filter orders.Filter) *orders.Subscription
}

// StreamDeps is what an order stream needs to build its feed. Notifier may be
// nil, in which case user streams carry no notification events.
type StreamDeps struct {
	Source   orderFeedSource
	Broker   orderSubscriber
	Notifier orders.Notifier
	Metrics  *metrics.Metrics
}

// OrdersStream streams the caller's orders as server-sent events. Every
// refetch is an "orders" event; every status change is a "notification" event.
func OrdersStream(deps StreamDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r, logg)
		if !ok {
			return
		}
		serveFeed(w, r, deps, orders.FeedOptions{
			Scope:    orders.ScopeUser,
			UserID:   userID,
			Notifier: deps.Notifier,
			Logger:   logg,
			Metrics:  deps.Metrics,
		}, logg)
	}
}

// AdminOrdersStream streams every open order.
func AdminOrdersStream(deps StreamDeps, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveFeed(w, r, deps, orders.FeedOptions{
			Scope:   orders.ScopeAdmin,
			UserID:  uuid.Nil,
			Logger:  logg,
			Metrics: deps.Metrics,
		}, logg)
	}
}

func serveFeed(w http.ResponseWriter, r *http.Request, deps StreamDeps, opts orders.FeedOptions, logg *logger.Logger) {
	if deps.Source == nil || deps.Broker == nil {
		unavailable(w, r, logg, "order stream")
		return
	}
	rc := http.NewResponseController(w)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	feed := orders.NewFeed(deps.Source, deps.Broker, opts)
	if err := feed.Start(ctx); err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders"))
		return
	}
	defer feed.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "order stream flush unsupported")
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	snapshots := feed.Snapshots()
	notices := feed.Notices()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, eventOrders, snapshot); err != nil {
				return
			}
		case notice, ok := <-notices:
			if !ok {
				notices = nil
				continue
			}
			if err := writeEvent(w, rc, eventNotification, notice); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return rc.Flush()
}
