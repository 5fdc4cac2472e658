package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/registry"
)

const (
	publishTimeout = 15 * time.Second
	pruneInterval  = time.Hour
	maxBackoff     = 10 * time.Second
	jitter         = 250 * time.Millisecond
)

type outcome string

const (
	outcomePublished  outcome = "published"
	outcomeRetry      outcome = "retry"
	outcomeDeadLetter outcome = "dead_letter"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Outbox        config.OutboxConfig
	Logger        *logger.Logger
	DB            dbClient
	Sink          sink
	Repository    outboxRepository
	Registry      registryResolver
	DLQRepository dlqRepository
	Metrics       *metrics.Metrics
}

// Service drains outbox_events into the configured sink. Each batch is
// claimed and settled inside one transaction, so two publishers never send
// the same row.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	repo     outboxRepository
	sink     sink
	registry registryResolver
	dlq      dlqRepository
	metrics  *metrics.Metrics

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	retention    time.Duration

	lastPrune time.Time
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Sink == nil:
		return nil, errors.New("transport sink is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	cfg := params.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		sink:         params.Sink,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		metrics:      params.Metrics,
		batchSize:    positiveOr(cfg.BatchSize, 50),
		maxAttempts:  positiveOr(cfg.MaxAttempts, 10),
		pollInterval: time.Duration(positiveOr(cfg.PollIntervalMS, 500)) * time.Millisecond,
		retention:    time.Duration(positiveOr(cfg.RetentionHours, 72)) * time.Hour,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Run polls until ctx is done. Full batches are followed immediately by the
// next one; an empty batch sleeps one poll interval; a failed batch backs
// off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.sink.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", s.sink.Name(), err)
	}

	failures := s.newBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return err
		}

		processed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait, _ = failures.Next()
		case processed:
			failures = s.newBackoff()
			continue
		default:
			failures = s.newBackoff()
			s.maybePrune(ctx)
			wait = s.pollInterval
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Service) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.pollInterval)
	b = retry.WithCappedDuration(maxBackoff, b)
	return retry.WithJitter(jitter, b)
}

// processBatch reports whether any rows were claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			result, err := s.settle(ctx, tx, event)
			if err != nil {
				return err
			}
			s.metrics.OutboxPublish(s.sink.Name(), string(result))
		}
		return nil
	})
	return processed, err
}

// settle publishes one row and records the result on it. Only bookkeeping
// failures are returned; they abort the batch transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, s.eventFields(event, nil))
	}
	fields := s.eventFields(event, resolved)

	sendErr := s.send(ctx, event, resolved)
	var nonRetry registry.NonRetryableError
	switch {
	case sendErr == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return "", fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil

	case errors.As(sendErr, &nonRetry):
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, sendErr, fields)

	case event.AttemptCount+1 >= s.maxAttempts:
		fields["attempt_count"] = event.AttemptCount + 1
		err := fmt.Errorf("max publish attempts reached: %w", sendErr)
		return outcomeDeadLetter, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, err, fields)
	}

	fields["attempt_count"] = event.AttemptCount + 1
	fields["error"] = sendErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, sendErr); err != nil {
		return "", fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row into outbox_dlq and retires it from the outbox.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	msg := cause.Error()
	if err := s.dlq.InsertTx(tx, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now(),
	}); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

// send forwards the stored envelope bytes unchanged, keyed by aggregate id
// so per-order ordering holds on partitioned transports.
func (s *Service) send(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	if topic == "" {
		return registry.NewNonRetryableError(fmt.Errorf("no topic configured for %s", event.EventType))
	}
	msg := outboundMessage{
		Key:  event.AggregateID.String(),
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.sink.Send(ctx, topic, msg)
}

// maybePrune removes published rows past retention, at most once per pruneInterval.
func (s *Service) maybePrune(ctx context.Context) {
	now := s.now()
	if !s.lastPrune.IsZero() && now.Sub(s.lastPrune) < pruneInterval {
		return
	}
	s.lastPrune = now

	deleted, err := s.repo.DeletePublishedBefore(nil, now.Add(-s.retention))
	if err != nil {
		s.logg.Error(ctx, "outbox prune failed", err)
		return
	}
	if deleted > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deleted", deleted), "outbox published rows pruned")
	}
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"sink":           s.sink.Name(),
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		if env := resolved.Envelope; env.EventID != "" {
			fields["event_id"] = env.EventID
			fields["occurred_at"] = env.OccurredAt.Format(time.RFC3339Nano)
		}
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
