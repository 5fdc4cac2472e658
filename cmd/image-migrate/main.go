package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/storage"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "image-migrate"})

	_ = godotenv.Load()

	dryRun := flag.Bool("dry-run", false, "report what would be migrated without uploading")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "image-migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"bucket":  cfg.Storage.Bucket,
		"dry_run": *dryRun,
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

	m := &migrator{
		bucket:   bucket,
		items:    menu.NewRepository(dbClient.DB()),
		client:   &http.Client{Timeout: 30 * time.Second},
		prefix:   cfg.Storage.Prefix,
		maxWidth: uint(cfg.Media.ImageMaxWidth),
		quality:  cfg.Media.ImageQuality,
		dryRun:   *dryRun,
		logg:     logg,
	}
	sum, err := m.run(ctx)
	if err != nil {
		logg.Error(ctx, "image migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"migrated": sum.Migrated,
		"skipped":  sum.Skipped,
		"failed":   sum.Failed,
	}), "image migration finished")
	if sum.Failed > 0 {
		os.Exit(2)
	}
}
