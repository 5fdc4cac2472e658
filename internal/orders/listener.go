package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/kafka"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/registry"
)

const (
	eventTypeAttribute = "event_type"

	// kafkaRetries bounds inline retries of one Kafka message. kafka-go never
	// redelivers an uncommitted message within a reader session, so a message
	// that still fails afterwards is logged and committed.
	kafkaRetries = 3
	kafkaBackoff = 100 * time.Millisecond
)

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type pubSubReceiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// Listener republishes order events produced by the outbox publisher into the
// local broker, so feeds on every instance see changes made on any instance.
type Listener struct {
	broker   Publisher
	decoders *registry.Decoders
	idem     *idempotency.Manager
	logg     *logger.Logger
	backoff  func() retry.Backoff
}

// NewListener builds a listener. idem suppresses redelivered events and may
// be nil.
func NewListener(broker Publisher, idem *idempotency.Manager, logg *logger.Logger) (*Listener, error) {
	if broker == nil {
		return nil, errors.New("broker required")
	}
	return &Listener{
		broker:   broker,
		decoders: registry.OrderDecoders(),
		idem:     idem,
		logg:     logg,
		backoff:  func() retry.Backoff {
			return retry.WithMaxRetries(kafkaRetries, retry.NewExponential(kafkaBackoff))
		},
	}, nil
}

// errSkip marks messages that are acknowledged without effect.
var errSkip = errors.New("skip")

// Handle decodes one published outbox payload and republishes it. A returned
// error asks the transport to redeliver.
func (l *Listener) Handle(ctx context.Context, eventType string, data []byte) error {
	err := l.handle(ctx, enums.OutboxEventType(eventType), data)
	if errors.Is(err, errSkip) {
		return nil
	}
	return err
}

func (l *Listener) handle(ctx context.Context, eventType enums.OutboxEventType, data []byte) error {
	if !eventType.IsValid() {
		return errSkip
	}
	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		l.warn(ctx, "undecodable order event dropped", err)
		return errSkip
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		l.warn(ctx, "order event with invalid id dropped", err)
		return errSkip
	}

	if l.idem != nil {
		fresh, err := l.idem.Claim(ctx, eventID)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			return errSkip
		}
	}

	payload, err := l.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		l.warn(ctx, "order event payload dropped", err)
		return errSkip
	}

	ev, ok := changeFromPayload(payload)
	if !ok {
		return errSkip
	}
	ev.At = envelope.OccurredAt
	l.broker.Publish(ctx, ev)
	return nil
}

func changeFromPayload(payload interface{}) (ChangeEvent, bool) {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		return ChangeEvent{Type: ChangeInsert, OrderID: p.OrderID, UserID: p.UserID, Status: p.Status}, true
	case *payloads.OrderStatusChangedEvent:
		return ChangeEvent{Type: ChangeUpdate, OrderID: p.OrderID, UserID: p.UserID, Status: p.To}, true
	case *payloads.OrderDeletedEvent:
		return ChangeEvent{Type: ChangeDelete, OrderID: p.OrderID, UserID: p.UserID, Status: p.Status}, true
	default:
		return ChangeEvent{}, false
	}
}

// RunKafka consumes until ctx ends. Each message is retried with backoff and
// its offset committed once it is handled or given up on.
func (l *Listener) RunKafka(ctx context.Context, reader kafkaReader) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch order event: %w", err)
		}
		eventType := kafka.HeaderValue(msg.Headers, eventTypeAttribute)
		err = retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
			if err := l.Handle(ctx, eventType, msg.Value); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.warn(ctx, "order event dropped after retries", err)
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			l.warn(ctx, "order event commit failed", err)
		}
	}
}

// RunPubSub consumes until ctx ends.
func (l *Listener) RunPubSub(ctx context.Context, sub pubSubReceiver) error {
	return sub.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if err := l.Handle(ctx, msg.Attributes[eventTypeAttribute], msg.Data); err != nil {
			l.warn(ctx, "order event not handled", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (l *Listener) warn(ctx context.Context, msg string, err error) {
	if l.logg == nil {
		return
	}
	l.logg.Warn(l.logg.WithField(ctx, "reason", err.Error()), msg)
}
