package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/foodorder-backend/api/controllers"
	"github.com/angelmondragon/foodorder-backend/api/middleware"
	"github.com/angelmondragon/foodorder-backend/api/routes"
	"github.com/angelmondragon/foodorder-backend/internal/auth"
	"github.com/angelmondragon/foodorder-backend/internal/cart"
	"github.com/angelmondragon/foodorder-backend/internal/checkout"
	"github.com/angelmondragon/foodorder-backend/internal/contact"
	"github.com/angelmondragon/foodorder-backend/internal/coupons"
	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/internal/notifications"
	"github.com/angelmondragon/foodorder-backend/internal/orders"
	"github.com/angelmondragon/foodorder-backend/internal/profiles"
	"github.com/angelmondragon/foodorder-backend/internal/reports"
	"github.com/angelmondragon/foodorder-backend/internal/users"
	"github.com/angelmondragon/foodorder-backend/internal/zones"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/instance"
	"github.com/angelmondragon/foodorder-backend/pkg/kafka"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
	"github.com/angelmondragon/foodorder-backend/pkg/migrate"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox"
	"github.com/angelmondragon/foodorder-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/foodorder-backend/pkg/pubsub"
	"github.com/angelmondragon/foodorder-backend/pkg/redis"
)

const (
	shutdownTimeout   = 15 * time.Second
	listenerDedupeTTL = time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	roles := auth.NewRoleResolver(userRepo, cfg.Auth.RoleLookupTimeout, cfg.Auth.RoleCacheTTL, logg)
	authService, err := auth.NewService(auth.ServiceParams{
		Tx:             dbClient,
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Roles:          roles,
		Holder:         auth.NewHolder(cfg.Auth.RoleCacheTTL),
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		SessionTimeout: cfg.Auth.SessionTimeout,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	menuRepo := menu.NewRepository(conn)
	menuLoader := menu.NewLoader(menuRepo, menu.LoaderOptions{
		Timeout:       cfg.Menu.FetchTimeout,
		RetryDelay:    cfg.Menu.RetryDelay,
		StaticCatalog: cfg.Menu.StaticCatalog,
		CacheTTL:      cfg.Menu.CacheTTL,
		Cache:         redisClient,
		Metrics:       m,
		Logger:        logg,
	})
	menuService, err := menu.NewService(menuRepo, menuLoader)
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(cart.NewSessionRepository(redisClient, cfg.Cart.SessionTTL), menuRepo, logg)
	if err != nil {
		return err
	}

	profileService, err := profiles.NewService(profiles.NewRepository(conn))
	if err != nil {
		return err
	}
	zoneService, err := zones.NewService(zones.NewRepository(conn))
	if err != nil {
		return err
	}
	couponService, err := coupons.NewService(coupons.NewRepository(conn))
	if err != nil {
		return err
	}

	broker := orders.NewBroker(cfg.Realtime.FeedBuffer, logg)
	// With a remote source the listener is the only path into the broker,
	// so every instance sees the same stream of changes.
	var localPublisher orders.Publisher
	if cfg.Realtime.Normalized() == config.RealtimeSourceLocal {
		localPublisher = broker
	}

	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	ordersRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(ordersRepo, dbClient, outboxService, localPublisher, logg)
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Orders:    ordersRepo,
		Profiles:  profileService,
		Cart:      cartService,
		Menu:      menuRepo,
		Zones:     zoneService,
		Coupons:   couponService,
		Outbox:    outboxService,
		Publisher: localPublisher,
		Metrics:   m,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	notificationRepo := notifications.NewRepository(conn)
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		return err
	}
	notifier, err := notifications.NewNotifier(notificationRepo, logg)
	if err != nil {
		return err
	}

	reportService, err := reports.NewService(ordersRepo, nil)
	if err != nil {
		return err
	}

	var contactService *contact.Service
	if cfg.Contact.WhatsAppNumber != "" {
		contactService, err = contact.NewService(cfg.Contact.WhatsAppNumber, cfg.Contact.WhatsAppMessage)
		if err != nil {
			return err
		}
	}

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	handler := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessionManager,
		Roles:         roles,
		Limiter:       limiter,
		Metrics:       m,
		Gatherer:      reg,
		Auth:          authService,
		Menu:          menuService,
		Cart:          cartService,
		Profiles:      profileService,
		Zones:         zoneService,
		Coupons:       couponService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Notifications: notificationService,
		Reports:       reportService,
		Contact:       contactService,
		Stream: controllers.StreamDeps{
			Source:   ordersRepo,
			Broker:   broker,
			Notifier: notifier,
			Metrics:  m,
		},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	id := instance.GetID()
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     ":" + port,
		"instance": id,
		"realtime": cfg.Realtime.Normalized(),
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return logCtx },
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		limiter.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return runListener(groupCtx, cfg, logg, redisClient, broker, id, &closers)
	})
	group.Go(func() error {
		logg.Info(logCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// runListener feeds remote order events into the local broker. The local
// source has nothing to listen to and returns immediately.
func runListener(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, broker *orders.Broker, id string, closers *[]io.Closer) error {
	source := cfg.Realtime.Normalized()
	if source == config.RealtimeSourceLocal {
		return nil
	}

	idem, err := idempotency.NewManager(redisClient, "order-feed-"+id, listenerDedupeTTL)
	if err != nil {
		return err
	}
	listener, err := orders.NewListener(broker, idem, logg)
	if err != nil {
		return err
	}

	switch source {
	case config.TransportKafka:
		kafkaCfg := cfg.Kafka
		// One group per instance: every instance needs every event.
		kafkaCfg.GroupID = kafkaCfg.GroupID + "-" + id
		reader, err := kafka.NewReader(kafkaCfg)
		if err != nil {
			return err
		}
		*closers = append(*closers, reader)
		return ignoreCanceled(listener.RunKafka(ctx, reader))
	case config.TransportPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return err
		}
		*closers = append(*closers, client)
		sub, err := client.InstanceSubscription(ctx, id)
		if err != nil {
			return err
		}
		return ignoreCanceled(listener.RunPubSub(ctx, sub))
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
