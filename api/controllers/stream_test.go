package controllers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

type memoryFeedSource struct {
	mu   sync.Mutex
	rows []models.Order
}

func (s *memoryFeedSource) ListForFeed(ctx context.Context, filter orders.FeedFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.rows))
	for _, row := range s.rows {
		if filter.UserID != nil && row.UserID != *filter.UserID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *memoryFeedSource) setStatus(id uuid.UUID, status enums.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows[i].Status = status
		}
	}
}

type recordingNotifier struct{}

func (recordingNotifier) NotifyStatus(ctx context.Context, order orders.OrderDTO, from, to enums.OrderStatus) (orders.Notice, error) {
	return orders.Notice{OrderID: order.ID, Status: to, Title: "Order Update", Tag: "order-" + order.ID.String()}, nil
}

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestOrdersStreamEmitsSnapshotsAndNotices(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	source := &memoryFeedSource{rows: []models.Order{
		{ID: orderID, UserID: userID, Status: enums.OrderStatusPending, CreatedAt: time.Now()},
		{ID: uuid.New(), UserID: uuid.New(), Status: enums.OrderStatusPending, CreatedAt: time.Now()},
	}}
	broker := orders.NewBroker(8, nil)

	handler := OrdersStream(StreamDeps{Source: source, Broker: broker, Notifier: recordingNotifier{}}, testLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, asUser(r, userID))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	reader := bufio.NewReader(resp.Body)

	first := readEvent(t, reader)
	if first.name != eventOrders {
		t.Fatalf("expected initial orders event, got %q", first.name)
	}
	var snapshot []orders.OrderDTO
	if err := json.Unmarshal([]byte(first.data), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].ID != orderID {
		t.Fatalf("expected only the caller's order, got %+v", snapshot)
	}

	source.setStatus(orderID, enums.OrderStatusConfirmed)
	broker.Publish(context.Background(), orders.ChangeEvent{Type: orders.ChangeUpdate, OrderID: orderID, UserID: userID, Status: enums.OrderStatusConfirmed})

	sawNotice, sawRefetch := false, false
	for i := 0; i < 2; i++ {
		ev := readEvent(t, reader)
		switch ev.name {
		case eventNotification:
			var notice orders.Notice
			if err := json.Unmarshal([]byte(ev.data), &notice); err != nil {
				t.Fatalf("decode notice: %v", err)
			}
			if notice.Status != enums.OrderStatusConfirmed || notice.OrderID != orderID {
				t.Fatalf("unexpected notice %+v", notice)
			}
			sawNotice = true
		case eventOrders:
			sawRefetch = true
		}
	}
	if !sawNotice || !sawRefetch {
		t.Fatalf("expected a refetch and a notification, got refetch=%v notice=%v", sawRefetch, sawNotice)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for broker.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected subscription released after disconnect, still %d", broker.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOrdersStreamRequiresSignIn(t *testing.T) {
	handler := OrdersStream(StreamDeps{Source: &memoryFeedSource{}, Broker: orders.NewBroker(1, nil)}, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/stream", nil)
	resp := httptest.NewRecorder()

	handler(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
