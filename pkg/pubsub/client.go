// Package pubsub holds the Google Cloud Pub/Sub client used when order
// changes travel over GCP instead of Kafka.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"

	// minSubscriptionTTL is the shortest expiration Pub/Sub accepts.
	minSubscriptionTTL = 24 * time.Hour
	maxSubscriptionID  = 255
	ackDeadlineSeconds = 20
)

type Client struct {
	gcp     *pubsub.Client
	project string
	cfg     config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and fails fast when the orders topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := wrap(raw, project, cfg)
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"project": project,
		"topic":   cfg.OrdersTopic,
	}), "pubsub client initialized")
	return c, nil
}

func wrap(raw *pubsub.Client, project string, cfg config.PubSubConfig) *Client {
	return &Client{gcp: raw, project: project, cfg: cfg, publishers: map[string]*pubsub.Publisher{}}
}

// Ping checks that the orders topic exists. Subscriptions are per instance
// and created on demand.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.gcp == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.exists(ctx, kindTopic, c.cfg.OrdersTopic)
}

func (c *Client) exists(ctx context.Context, kind, name string) error {
	full := ResourceName(c.project, kind, name)
	if full == "" {
		return fmt.Errorf("pubsub %s %q not configured", strings.TrimSuffix(kind, "s"), name)
	}

	var err error
	if kind == kindTopic {
		_, err = c.gcp.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
	} else {
		_, err = c.gcp.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	}
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", full)
	case err != nil:
		return fmt.Errorf("checking %s: %w", full, err)
	}
	return nil
}

// InstanceSubscription returns this instance's own subscription to the
// orders topic, creating it when missing. A subscription hands each message to
// only one of its receivers, so instances cannot share one and still all see
// every order change. Abandoned subscriptions expire after the configured TTL
// of inactivity.
func (c *Client) InstanceSubscription(ctx context.Context, instanceID string) (*pubsub.Subscriber, error) {
	if c == nil || c.gcp == nil {
		return nil, errors.New("pubsub client not initialized")
	}
	name := InstanceSubscriptionID(c.cfg.OrdersSubscription, instanceID)
	full := ResourceName(c.project, kindSubscription, name)
	topic := ResourceName(c.project, kindTopic, c.cfg.OrdersTopic)
	if full == "" || topic == "" {
		return nil, errors.New("pubsub orders topic and subscription must be configured")
	}

	_, err := c.gcp.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
	switch {
	case err == nil:
		return c.gcp.Subscriber(full), nil
	case status.Code(err) != codes.NotFound:
		return nil, fmt.Errorf("checking %s: %w", full, err)
	}

	_, err = c.gcp.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               full,
		Topic:              topic,
		AckDeadlineSeconds: ackDeadlineSeconds,
		ExpirationPolicy:   &pubsubpb.ExpirationPolicy{Ttl: durationpb.New(max(c.cfg.SubscriptionTTL, minSubscriptionTTL))},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, fmt.Errorf("creating %s: %w", full, err)
	}
	return c.gcp.Subscriber(full), nil
}

// InstanceSubscriptionID names the subscription of one instance as
// <base>-<instance>. Characters Pub/Sub rejects become '-'.
func InstanceSubscriptionID(base, instanceID string) string {
	base = strings.TrimSpace(base)
	instanceID = strings.TrimSpace(instanceID)
	if base == "" || instanceID == "" {
		return ""
	}
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case strings.ContainsRune("-_.~+%", r):
			return r
		}
		return '-'
	}, instanceID)
	id := base + "-" + clean
	if len(id) > maxSubscriptionID {
		id = id[:maxSubscriptionID]
	}
	return id
}

// Publisher hands out one shared publisher per topic. They are stopped, and
// their pending messages flushed, by Close.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.gcp == nil {
		return nil
	}
	full := ResourceName(c.project, kindTopic, topic)
	if full == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.gcp.Publisher(full)
	c.publishers[full] = p
	return p
}

func (c *Client) Close() error {
	if c == nil || c.gcp == nil {
		return nil
	}
	c.mu.Lock()
	for full, p := range c.publishers {
		p.Stop()
		delete(c.publishers, full)
	}
	c.mu.Unlock()
	return c.gcp.Close()
}

// ResourceName expands a short id into projects/<project>/<kind>/<id>.
// Names that are already fully qualified pass through.
func ResourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
