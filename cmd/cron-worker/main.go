package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/foodorder-backend/internal/cron"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/internal/notifications"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/migrate"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/redis"
)

const serviceName = "cron-worker"

var errBadJobsFlag = errors.New("invalid -jobs flag")

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Cron.Interval.String(),
		"once":        *once,
	})

	err = run(ctx, cfg, logg, *once, jobNames(*only))
	switch {
	case errors.Is(err, errBadJobsFlag):
		logg.Error(ctx, "cron worker misconfigured", err)
		os.Exit(2)
	case err != nil && !errors.Is(err, context.Canceled):
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker finished")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, only []string) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient)

	m := metrics.New(prometheus.DefaultRegisterer)
	registry, err := buildRegistry(cfg, logg, m, dbClient, redisClient)
	if err != nil {
		return err
	}
	if registry, err = registry.Only(only...); err != nil {
		return fmt.Errorf("%w: %w", errBadJobsFlag, err)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.CronLockKey(envName(cfg.App.Env)), cfg.Cron.Interval)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    m,
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return err
	}

	if once {
		return service.RunOnce(ctx)
	}
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

// buildRegistry wires every maintenance job the worker knows about.
func buildRegistry(cfg *config.Config, logg *logger.Logger, m *metrics.Metrics, dbClient *db.Client, redisClient *redis.Client) (*cron.Registry, error) {
	conn := dbClient.DB()
	cleanup, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "notification-cleanup",
		Logger:    logg,
		Prune:     notifications.NewRepository(conn).DeleteReadBefore,
		Retention: cron.Days(cfg.Cron.NotificationRetentionDays),
	})
	if err != nil {
		return nil, err
	}
	dlq, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:      "outbox-dlq-retention",
		Logger:    logg,
		Prune:     outbox.NewDLQRepository(conn).DeleteFailedBefore,
		Retention: cron.Days(cfg.Cron.DLQRetentionDays),
	})
	if err != nil {
		return nil, err
	}
	loader := menu.NewLoader(menu.NewRepository(conn), menu.LoaderOptions{
		Timeout:       cfg.Menu.FetchTimeout,
		RetryDelay:    cfg.Menu.RetryDelay,
		StaticCatalog: cfg.Menu.StaticCatalog,
		CacheTTL:      cfg.Menu.CacheTTL,
		Cache:         redisClient,
		Metrics:       m,
		Logger:        logg,
	})
	warm, err := cron.NewMenuWarmJob(logg, loader)
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(cleanup, dlq, warm), nil
}

func envName(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func jobNames(flagValue string) []string {
	var names []string
	for _, name := range strings.Split(flagValue, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
