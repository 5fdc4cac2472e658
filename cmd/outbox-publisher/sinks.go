package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/kafka"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/registry"
)

// outboundMessage is the transport-neutral form of an outbox row.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

// sink delivers resolved outbox rows to one transport.
type sink interface {
	Name() string
	Ping(context.Context) error
	Send(ctx context.Context, topic string, msg outboundMessage) error
}

// pubsub

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type pubSubSink struct {
	client  pubSubClient
	factory publisherFactory

	mu   sync.Mutex
	pubs map[string]publisher
}

func newPubSubSink(client pubSubClient, factory publisherFactory) *pubSubSink {
	if factory == nil && client != nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(client.Publisher(topic))
		}
	}
	return &pubSubSink{client: client, factory: factory, pubs: make(map[string]publisher)}
}

func (s *pubSubSink) Name() string { return config.TransportPubSub }

func (s *pubSubSink) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx)
}

func (s *pubSubSink) Send(ctx context.Context, topic string, msg outboundMessage) error {
	pub := s.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}
	result := pub.Publish(ctx, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(ctx)
	return err
}

// publisherFor reuses one publisher per topic; each holds its own batching goroutines.
func (s *pubSubSink) publisherFor(topic string) publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.pubs[topic]; ok {
		return pub
	}
	if s.factory == nil {
		return nil
	}
	pub := s.factory(topic)
	if pub != nil {
		s.pubs[topic] = pub
	}
	return pub
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}

// kafka

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type kafkaSink struct {
	writer messageWriter
	ping   func(context.Context) error
}

func newKafkaSink(writer messageWriter, ping func(context.Context) error) *kafkaSink {
	return &kafkaSink{writer: writer, ping: ping}
}

func (s *kafkaSink) Name() string { return config.TransportKafka }

func (s *kafkaSink) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Send keys by aggregate id so every event of one order lands on the same partition.
func (s *kafkaSink) Send(ctx context.Context, topic string, msg outboundMessage) error {
	if s.writer == nil {
		return registry.NewNonRetryableError(errors.New("kafka writer not configured"))
	}
	return s.writer.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: kafka.HeadersFromMap(msg.Attributes),
	})
}

func (s *kafkaSink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
