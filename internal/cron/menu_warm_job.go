package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

type menuFetcher interface {
	Fetch(ctx context.Context) menu.Snapshot
}

// NewMenuWarmJob reloads the menu so the shared snapshot cache is populated
// before the first customer asks for it.
func NewMenuWarmJob(logg *logger.Logger, loader menuFetcher) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if loader == nil {
		return nil, fmt.Errorf("menu loader required")
	}
	return &menuWarmJob{logg: logg, loader: loader}, nil
}

type menuWarmJob struct {
	logg   *logger.Logger
	loader menuFetcher
}

func (j *menuWarmJob) Name() string { return "menu-warm" }

func (j *menuWarmJob) Run(ctx context.Context) error {
	snap := j.loader.Fetch(ctx)
	if snap.Fallback {
		return fmt.Errorf("menu warm: %s", snap.Error)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"categories": len(snap.Categories),
		"items":      len(snap.Items),
		"generation": snap.Generation,
	})
	j.logg.Info(logCtx, "menu snapshot refreshed")
	return nil
}
