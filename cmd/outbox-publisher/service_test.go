package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	"github.com/angelmondragon/foodorder-backend/pkg/kafka"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	repo := &memOutbox{events: []models.OutboxEvent{
		orderEvent(t, "event-one", 0),
		orderEvent(t, "event-two", 0),
	}}
	out := &fakeSink{errs: []error{errors.New("transient"), nil}}
	service := newTestService(t, repo, out, &fakeRegistry{resolved: resolvedOrderCreated()}, &memDLQ{}, nil)

	processed, err := service.processBatch(context.Background())

	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
}

func TestProcessBatchReportsEmptyOutbox(t *testing.T) {
	service := newTestService(t, &memOutbox{}, &fakeSink{}, &fakeRegistry{}, &memDLQ{}, nil)

	processed, err := service.processBatch(context.Background())

	require.NoError(t, err)
	assert.False(t, processed)
}

func TestSendForwardsEnvelopeKeyedByAggregate(t *testing.T) {
	event := orderEvent(t, "keyed", 0)
	out := &fakeSink{}
	service := newTestService(t, &memOutbox{events: []models.OutboxEvent{event}}, out, &fakeRegistry{resolved: resolvedOrderCreated()}, &memDLQ{}, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, out.sent, 1)
	sent := out.sent[0]
	assert.Equal(t, "order-events", sent.topic)
	assert.Equal(t, event.AggregateID.String(), sent.msg.Key)
	assert.Equal(t, string(enums.EventOrderCreated), sent.msg.Attributes["event_type"])
	assert.True(t, bytes.Equal(sent.msg.Data, event.Payload), "payload must be forwarded unchanged")
}

func TestUnresolvableRowGoesToDLQ(t *testing.T) {
	event := orderEvent(t, "nonretryable", 0)
	dlqRepo := &memDLQ{}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	service := newTestService(t, &memOutbox{events: []models.OutboxEvent{event}}, &fakeSink{}, reg, dlqRepo, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, dlqRepo.entries, 1)
	entry := dlqRepo.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, []byte(event.Payload), []byte(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
}

func TestLastAttemptGoesToDLQ(t *testing.T) {
	event := orderEvent(t, "max-attempts", 1)
	dlqRepo := &memDLQ{}
	out := &fakeSink{errs: []error{errors.New("transient")}}
	service := newTestService(t, &memOutbox{events: []models.OutboxEvent{event}}, out, &fakeRegistry{resolved: resolvedOrderCreated()}, dlqRepo, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, dlqRepo.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlqRepo.entries[0].ErrorReason)
}

func TestPruneRunsOncePerInterval(t *testing.T) {
	repo := &memOutbox{}
	service := newTestService(t, repo, &fakeSink{}, &fakeRegistry{}, &memDLQ{}, &config.OutboxConfig{RetentionHours: 24})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	service.maybePrune(context.Background())
	service.maybePrune(context.Background())
	require.Len(t, repo.pruneCutoffs, 1)
	assert.True(t, repo.pruneCutoffs[0].Equal(now.Add(-24*time.Hour)))

	now = now.Add(pruneInterval)
	service.maybePrune(context.Background())
	assert.Len(t, repo.pruneCutoffs, 2)
}

func TestFailureBackoffGrowsAndCaps(t *testing.T) {
	service := newTestService(t, &memOutbox{}, &fakeSink{}, &fakeRegistry{}, &memDLQ{}, &config.OutboxConfig{PollIntervalMS: 500})
	b := service.newBackoff()

	first, stop := b.Next()
	require.False(t, stop)
	assert.GreaterOrEqual(t, first, 500*time.Millisecond-jitter)

	var last time.Duration
	for range 10 {
		last, _ = b.Next()
	}
	assert.LessOrEqual(t, last, maxBackoff+jitter)
	assert.GreaterOrEqual(t, last, maxBackoff-jitter)
}

func TestPubSubSinkReusesPublisherPerTopic(t *testing.T) {
	created := 0
	pub := &recordingPublisher{results: []publishResult{fakePublishResult{}, fakePublishResult{err: errors.New("boom")}}}
	s := newPubSubSink(nil, func(topic string) publisher {
		created++
		return pub
	})

	if err := s.Send(context.Background(), "order-events", outboundMessage{Data: []byte("{}")}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := s.Send(context.Background(), "order-events", outboundMessage{Data: []byte("{}")}); err == nil {
		t.Fatal("expected publish error to surface")
	}
	if created != 1 {
		t.Fatalf("expected one publisher, got %d", created)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected two published messages, got %d", len(pub.messages))
	}
}

func TestPubSubSinkMissingPublisherIsTerminal(t *testing.T) {
	s := newPubSubSink(nil, func(string) publisher { return nil })
	err := s.Send(context.Background(), "missing", outboundMessage{})
	var nonRetry registry.NonRetryableError
	if !errors.As(err, &nonRetry) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestKafkaSinkWritesTopicKeyAndHeaders(t *testing.T) {
	writer := &fakeWriter{}
	s := newKafkaSink(writer, nil)

	err := s.Send(context.Background(), "order-events", outboundMessage{
		Key:        "order-1",
		Data:       []byte(`{"version":1}`),
		Attributes: map[string]string{"event_type": "order_created"},
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if len(writer.messages) != 1 {
		t.Fatalf("expected one kafka message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if msg.Topic != "order-events" || string(msg.Key) != "order-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if kafka.HeaderValue(msg.Headers, "event_type") != "order_created" {
		t.Fatalf("missing event_type header")
	}
	if s.Name() != config.TransportKafka {
		t.Fatalf("unexpected sink name %q", s.Name())
	}
}

func newTestService(t *testing.T, repo outboxRepository, out sink, reg registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Outbox:        outboxCfg,
		Logger:        logg,
		DB:            &noopDB{},
		Sink:          out,
		Repository:    repo,
		Registry:      reg,
		DLQRepository: dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelopeJSON(tb, eventID),
		AttemptCount:  attempts,
	}
}

func resolvedOrderCreated() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			Topic:         "order-events",
			AggregateType: enums.AggregateOrder,
		},
		Envelope: outbox.PayloadEnvelope{
			EventID:    uuid.NewString(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OrderCreatedEvent{},
	}
}

func envelopeJSON(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type memOutbox struct {
	events       []models.OutboxEvent
	published    []uuid.UUID
	failed       []uuid.UUID
	pruneCutoffs []time.Time
}

func (f *memOutbox) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *memOutbox) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *memOutbox) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *memOutbox) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *memOutbox) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.pruneCutoffs = append(f.pruneCutoffs, cutoff)
	return 0, nil
}

type noopDB struct{}

func (f *noopDB) Ping(context.Context) error {
	return nil
}

func (f *noopDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type sentMessage struct {
	topic string
	msg   outboundMessage
}

type fakeSink struct {
	errs []error
	sent []sentMessage
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Ping(context.Context) error { return nil }

func (f *fakeSink) Send(_ context.Context, topic string, msg outboundMessage) error {
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err == nil {
		f.sent = append(f.sent, sentMessage{topic: topic, msg: msg})
	}
	return err
}

type recordingPublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *recordingPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeWriter struct {
	messages []kafkago.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type memDLQ struct {
	entries []models.OutboxDLQ
}

func (f *memDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}
