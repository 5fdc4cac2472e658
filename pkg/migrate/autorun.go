package migrate

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to the embedded migrations on boot.
// Outside dev, or with FOODORDER_AUTO_MIGRATE off, it does nothing; deployed
// environments run cmd/migrate instead.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("auto-migrate: read version: %w", err)
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"version": version,
	}), "dev database migrated")
	return nil
}
