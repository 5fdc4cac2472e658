package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// PruneFunc deletes rows older than cutoff and reports how many went.
type PruneFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// RetentionJobParams configures a job that keeps a table to a rolling window.
type RetentionJobParams struct {
	Name      string
	Logger    *logger.Logger
	Prune     PruneFunc
	Retention time.Duration
}

// NewRetentionJob runs Prune with cutoff = now - Retention on every cycle.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	switch {
	case params.Name == "":
		return nil, fmt.Errorf("job name required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.Prune == nil:
		return nil, fmt.Errorf("%s: prune func required", params.Name)
	case params.Retention <= 0:
		return nil, fmt.Errorf("%s: retention must be positive", params.Name)
	}
	return &retentionJob{params: params, now: time.Now}, nil
}

type retentionJob struct {
	params RetentionJobParams
	now    func() time.Time
}

func (j *retentionJob) Name() string { return j.params.Name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.params.Retention)
	deleted, err := j.params.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.params.Name, err)
	}
	j.params.Logger.Info(j.params.Logger.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.params.Retention.String(),
		"rows_deleted": deleted,
	}), "retention pass complete")
	return nil
}

// Days converts a day count from config into a retention window.
func Days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
