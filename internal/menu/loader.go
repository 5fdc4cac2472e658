package menu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/metrics"
)

// Source is the read side of the menu store.
type Source interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListItems(ctx context.Context) ([]models.MenuItem, error)
}

type snapshotCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	MenuSnapshotKey() string
}

// LoaderOptions tunes a Loader. Zero values take the defaults.
type LoaderOptions struct {
	Timeout       time.Duration
	RetryDelay    time.Duration
	StaticCatalog bool
	CacheTTL      time.Duration
	Cache         snapshotCache
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// Loader fetches the menu with a per-attempt timeout, one retry and a static
// fallback. Every Fetch takes a new generation; only the newest generation may
// commit its result.
type Loader struct {
	source  Source
	opts    LoaderOptions
	gen     atomic.Uint64
	mu      sync.RWMutex
	current *Snapshot
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

func NewLoader(source Source, opts LoaderOptions) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	return &Loader{source: source, opts: opts, sleep: sleepCtx, now: time.Now}
}

type fetchResult struct {
	categories []models.Category
	items      []models.MenuItem
}

// Fetch runs a fresh load and returns the snapshot the caller should render:
// its own result when it is still the newest fetch, otherwise whatever the
// newest fetch committed.
func (l *Loader) Fetch(ctx context.Context) Snapshot {
	gen := l.gen.Add(1)

	res, err := l.attempt(ctx)
	if err != nil {
		l.warn(ctx, gen, "menu fetch failed, retrying", err)
		if sleepErr := l.sleep(ctx, l.opts.RetryDelay); sleepErr == nil {
			res, err = l.attempt(ctx)
		}
	}

	var snap Snapshot
	if err != nil {
		l.warn(ctx, gen, "menu fetch failed, serving fallback", err)
		snap = l.fallback(err)
	} else {
		snap = l.build(res)
	}
	snap.Generation = gen
	snap.FetchedAt = l.now().UTC()

	if !l.commit(gen, &snap) {
		l.opts.Metrics.MenuFetch(metrics.MenuFetchStale)
		if cur, ok := l.Current(); ok {
			return cur
		}
		return snap
	}

	if snap.Fallback {
		l.opts.Metrics.MenuFetch(metrics.MenuFetchFallback)
	} else {
		l.opts.Metrics.MenuFetch(metrics.MenuFetchOK)
		l.store(ctx, snap)
	}
	return snap
}

// Get serves a fresh committed snapshot, then the shared cache, and only then
// fetches.
func (l *Loader) Get(ctx context.Context) Snapshot {
	if cur, ok := l.Current(); ok && !cur.Fallback && l.fresh(cur) {
		return cur
	}
	if l.opts.Cache != nil {
		var cached Snapshot
		found, err := l.opts.Cache.GetJSON(ctx, l.opts.Cache.MenuSnapshotKey(), &cached)
		if err == nil && found && l.fresh(cached) {
			l.adopt(cached)
			return cached
		}
	}
	return l.Fetch(ctx)
}

// Current returns the last committed snapshot.
func (l *Loader) Current() (Snapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return Snapshot{}, false
	}
	return *l.current, true
}

// Invalidate drops the local and shared snapshot after a menu write.
func (l *Loader) Invalidate(ctx context.Context) {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()
	if l.opts.Cache == nil {
		return
	}
	if err := l.opts.Cache.Del(ctx, l.opts.Cache.MenuSnapshotKey()); err != nil {
		l.warn(ctx, l.gen.Load(), "menu cache invalidation failed", err)
	}
}

// attempt runs both reads concurrently under the fetch timeout. It returns on
// timeout even if the reads ignore cancellation; late results are discarded.
func (l *Loader) attempt(ctx context.Context) (fetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	type outcome struct {
		res fetchResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var res fetchResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			cats, err := l.source.ListCategories(gctx)
			res.categories = cats
			return err
		})
		g.Go(func() error {
			items, err := l.source.ListItems(gctx)
			res.items = items
			return err
		})
		err := g.Wait()
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return fetchResult{}, ctx.Err()
	}
}

func (l *Loader) build(res fetchResult) Snapshot {
	snap := Snapshot{
		Categories: make([]CategoryView, 0, len(res.categories)),
		Items:      make([]ItemView, 0, len(res.items)),
	}
	for _, c := range res.categories {
		snap.Categories = append(snap.Categories, categoryFromModel(c))
	}
	if len(snap.Categories) == 0 {
		snap.Categories = FallbackCategories()
		snap.StaticCategories = true
	}
	for _, it := range res.items {
		snap.Items = append(snap.Items, itemFromModel(it))
	}
	return snap
}

func (l *Loader) fallback(err error) Snapshot {
	snap := Snapshot{
		Categories:       FallbackCategories(),
		Items:            []ItemView{},
		Fallback:         true,
		StaticCategories: true,
		Error:            err.Error(),
	}
	if l.opts.StaticCatalog {
		snap.Items = StaticCatalog()
	}
	return snap
}

func (l *Loader) commit(gen uint64, snap *Snapshot) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen.Load() {
		return false
	}
	copied := *snap
	l.current = &copied
	return true
}

// adopt installs a snapshot read from the shared cache unless the local one is
// newer. Generations are per process, so recency is judged by FetchedAt.
func (l *Loader) adopt(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil && l.current.FetchedAt.After(snap.FetchedAt) {
		return
	}
	copied := snap
	l.current = &copied
}

func (l *Loader) store(ctx context.Context, snap Snapshot) {
	if l.opts.Cache == nil || l.opts.CacheTTL <= 0 {
		return
	}
	if err := l.opts.Cache.SetJSON(ctx, l.opts.Cache.MenuSnapshotKey(), snap, l.opts.CacheTTL); err != nil {
		l.warn(ctx, snap.Generation, "menu cache write failed", err)
	}
}

func (l *Loader) fresh(snap Snapshot) bool {
	if l.opts.CacheTTL <= 0 {
		return false
	}
	return l.now().Sub(snap.FetchedAt) < l.opts.CacheTTL
}

func (l *Loader) warn(ctx context.Context, gen uint64, msg string, err error) {
	if l.opts.Logger == nil {
		return
	}
	fields := map[string]any{"generation": gen}
	if err != nil {
		fields["reason"] = err.Error()
	}
	l.opts.Logger.Warn(l.opts.Logger.WithFields(ctx, fields), msg)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
