package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storage-audit"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storage-audit",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"provider": cfg.Storage.Provider,
		"bucket":   cfg.Storage.Bucket,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	bucket, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logg.Error(ctx, "failed to open bucket", err)
		os.Exit(1)
	}

	items, err := menu.NewRepository(dbClient.DB()).ListItems(ctx)
	if err != nil {
		logg.Error(ctx, "failed to list menu items", err)
		os.Exit(1)
	}

	rep, err := audit(ctx, bucket, cfg.Storage.Prefix, items)
	if err != nil {
		logg.Error(ctx, "storage audit failed", err)
		os.Exit(1)
	}
	if err := rep.write(os.Stdout); err != nil {
		logg.Error(ctx, "failed to write report", err)
		os.Exit(1)
	}
	if missing := rep.count(stateMissing); missing > 0 {
		logg.Warn(logg.WithField(ctx, "missing", missing), "menu items reference missing objects")
		os.Exit(2)
	}
}
