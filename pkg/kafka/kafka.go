package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	kafkago "github.com/segmentio/kafka-go"
)

// Message aliases the kafka-go message so callers do not import the driver.
type Message = kafkago.Message

// Header aliases a kafka-go record header.
type Header = kafkago.Header

var errNoBrokers = errors.New("kafka brokers are required")

// NewWriter builds a writer without a default topic; every message names its own.
func NewWriter(cfg config.KafkaConfig) (*kafkago.Writer, error) {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}, nil
}

// NewReader builds a consumer-group reader for the orders topic.
func NewReader(cfg config.KafkaConfig) (*kafkago.Reader, error) {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka group id is required")
	}
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.OrdersTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), nil
}

// Ping dials the first reachable broker.
func Ping(ctx context.Context, cfg config.KafkaConfig) error {
	brokers := cleanBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return errNoBrokers
	}
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("dial kafka: %w", lastErr)
}

// HeaderValue returns the value of the named header, or "".
func HeaderValue(headers []Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// HeadersFromMap converts attribute maps into record headers.
func HeadersFromMap(attrs map[string]string) []Header {
	headers := make([]Header, 0, len(attrs))
	for k, v := range attrs {
		headers = append(headers, Header{Key: k, Value: []byte(v)})
	}
	return headers
}

func cleanBrokers(brokers []string) []string {
	out := make([]string, 0, len(brokers))
	for _, b := range brokers {
		if trimmed := strings.TrimSpace(b); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
