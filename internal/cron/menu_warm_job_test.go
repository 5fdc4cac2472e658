package cron

import (
	"context"
	"testing"

	"github.com/angelmondragon/foodorder-backend/internal/menu"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

type fakeMenuFetcher struct {
	snap  menu.Snapshot
	calls int
}

func (f *fakeMenuFetcher) Fetch(ctx context.Context) menu.Snapshot {
	f.calls++
	return f.snap
}

func TestMenuWarmJobFetches(t *testing.T) {
	fetcher := &fakeMenuFetcher{snap: menu.Snapshot{Categories: []menu.CategoryView{{Slug: "mains"}}}}
	job, err := NewMenuWarmJob(logger.New(logger.Options{ServiceName: "test"}), fetcher)
	if err != nil {
		t.Fatalf("NewMenuWarmJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.calls)
	}
}

func TestMenuWarmJobReportsFallback(t *testing.T) {
	fetcher := &fakeMenuFetcher{snap: menu.Snapshot{Fallback: true, Error: "menu temporarily unavailable"}}
	job, err := NewMenuWarmJob(logger.New(logger.Options{ServiceName: "test"}), fetcher)
	if err != nil {
		t.Fatalf("NewMenuWarmJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected fallback to fail the job")
	}
}
