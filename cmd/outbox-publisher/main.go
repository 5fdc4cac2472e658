package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/kafka"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/migrate"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/registry"
	"github.com/angelmondragon/foodorder-backend/pkg/pubsub"
)

func main() {
	listDLQ := flag.Bool("dlq", false, "print the newest dead letters and exit")
	requeue := flag.String("requeue", "", "move the dead letter of this event id back into the outbox and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	switch {
	case *listDLQ:
		if err := printDLQ(context.Background(), dlqRepo); err != nil {
			logg.Error(context.Background(), "failed to list dead letters", err)
			os.Exit(1)
		}
		return
	case *requeue != "":
		if err := requeueEvent(context.Background(), dbClient, dlqRepo, *requeue); err != nil {
			logg.Error(context.Background(), "failed to requeue dead letter", err)
			os.Exit(1)
		}
		return
	}

	transportSink, topic, closeSink, err := buildSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap transport", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeSink(); err != nil {
			logg.Error(context.Background(), "error closing transport", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(topic)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Outbox:        cfg.Outbox,
		Logger:        logg,
		DB:            dbClient,
		Sink:          transportSink,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Metrics:       metrics.New(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "outbox-publisher",
		"transport":   transportSink.Name(),
		"topic":       topic,
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// buildSink opens the configured transport and returns the topic order events go to.
func buildSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (sink, string, func() error, error) {
	switch cfg.Eventing.Normalized() {
	case config.TransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, "", nil, err
		}
		return newPubSubSink(client, nil), cfg.PubSub.OrdersTopic, client.Close, nil
	default:
		writer, err := kafka.NewWriter(cfg.Kafka)
		if err != nil {
			return nil, "", nil, err
		}
		s := newKafkaSink(writer, func(ctx context.Context) error { return kafka.Ping(ctx, cfg.Kafka) })
		return s, cfg.Kafka.OrdersTopic, s.Close, nil
	}
}

func printDLQ(ctx context.Context, repo *outbox.DLQRepository) error {
	rows, err := repo.List(ctx, 50)
	if err != nil {
		return err
	}
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Printf("%s\t%s\t%s\t%d\t%s\t%s\n", row.FailedAt.Format("2006-01-02T15:04:05Z07:00"), row.EventID, row.EventType, row.AttemptCount, row.ErrorReason, msg)
	}
	return nil
}

func requeueEvent(ctx context.Context, dbClient *db.Client, repo *outbox.DLQRepository, rawID string) error {
	eventID, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid event id %q: %w", rawID, err)
	}
	return dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := repo.RequeueTx(tx, eventID)
		if err != nil {
			return err
		}
		fmt.Printf("requeued %s as %s\n", eventID, event.ID)
		return nil
	})
}
