package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/foodorder-backend/internal/users"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "promote-admin"})

	_ = godotenv.Load()

	target := flag.String("user", "", "user id to promote; empty lists users and promotes a sole user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "promote-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"user": *target,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	result, err := run(ctx, dbClient, users.NewRepository(dbClient.DB()), *target, os.Stdout)
	if err != nil {
		logg.Error(ctx, "promotion failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "outcome", string(result)), "promote-admin finished")
}
