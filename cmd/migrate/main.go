package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands never open a database connection.
var offline = map[string]func(options) error{
	"create": func(o options) error {
		if o.name == "" {
			return fmt.Errorf("-name is required for create")
		}
		dir := o.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, o.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	},
	"validate": func(o options) error {
		if o.dir != "" {
			return migrate.ValidateDir(o.dir)
		}
		return migrate.ValidateEmbedded()
	},
}

var online = map[string]func(context.Context, *sql.DB, options) error{
	"up":     gooseCommand("up"),
	"down":   gooseCommand("down"),
	"status": gooseCommand("status"),
	"version": func(ctx context.Context, conn *sql.DB, o options) error {
		if o.version == "" {
			return fmt.Errorf("-version is required for version")
		}
		return migrate.MigrateToVersion(ctx, conn, o.dir, o.version)
	},
}

func gooseCommand(name string) func(context.Context, *sql.DB, options) error {
	return func(ctx context.Context, conn *sql.DB, o options) error {
		return migrate.Run(ctx, conn, o.dir, name)
	}
}

func main() {
	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	var o options
	flag.StringVar(&o.dir, "dir", "", "migrations directory on disk (empty uses the embedded set)")
	flag.StringVar(&o.name, "name", "", "migration name for create")
	flag.StringVar(&o.version, "version", "", "target YYYYMMDDHHMMSS version for version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": o.dir})

	if err := run(ctx, logg, *cmd, o); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, cmd string, o options) error {
	if fn, ok := offline[cmd]; ok {
		return fn(o)
	}
	fn, ok := online[cmd]
	if !ok {
		return fmt.Errorf("unknown -cmd %q", cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	conn, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "env", cfg.App.Env), "running migrations")
	return fn(ctx, conn, o)
}
