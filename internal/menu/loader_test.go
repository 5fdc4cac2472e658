package menu

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	redisclient "github.com/angelmondragon/foodorder-backend/pkg/redis"
)

type stubSource struct {
	categories func(ctx context.Context) ([]models.Category, error)
	items      func(ctx context.Context) ([]models.MenuItem, error)
}

func (s stubSource) ListCategories(ctx context.Context) ([]models.Category, error) {
	if s.categories == nil {
		return nil, nil
	}
	return s.categories(ctx)
}

func (s stubSource) ListItems(ctx context.Context) ([]models.MenuItem, error) {
	if s.items == nil {
		return nil, nil
	}
	return s.items(ctx)
}

func noSleep(l *Loader) *Loader {
	l.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return l
}

func TestFetchTimeoutServesFallbackCategories(t *testing.T) {
	hang := make(chan struct{})
	t.Cleanup(func() { close(hang) })

	// Never resolves and ignores cancellation.
	src := stubSource{categories: func(context.Context) ([]models.Category, error) {
		<-hang
		return nil, nil
	}}
	l := noSleep(NewLoader(src, LoaderOptions{Timeout: 20 * time.Millisecond}))

	start := time.Now()
	snap := l.Fetch(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, snap.Fallback)
	assert.True(t, snap.StaticCategories)
	require.Len(t, snap.Categories, 5)
	assert.Equal(t, "mains", snap.Categories[0].Slug)
	assert.Empty(t, snap.Items)
	assert.NotEmpty(t, snap.Error)

	cur, ok := l.Current()
	require.True(t, ok)
	assert.True(t, cur.Fallback)
}

func TestFetchRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	var slept time.Duration
	src := stubSource{categories: func(context.Context) ([]models.Category, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return []models.Category{{Slug: "mains", Name: "Mains"}}, nil
	}}
	l := NewLoader(src, LoaderOptions{RetryDelay: time.Second})
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	snap := l.Fetch(context.Background())

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, time.Second, slept)
	assert.False(t, snap.Fallback)
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, "Mains", snap.Categories[0].Name)
}

func TestFetchGivesUpAfterSecondFailure(t *testing.T) {
	var calls atomic.Int32
	src := stubSource{items: func(context.Context) ([]models.MenuItem, error) {
		calls.Add(1)
		return nil, errors.New("down")
	}}
	l := noSleep(NewLoader(src, LoaderOptions{}))

	snap := l.Fetch(context.Background())

	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, snap.Fallback)
	assert.Len(t, snap.Categories, 5)
}

func TestFetchEmptyCategoriesUsesStaticList(t *testing.T) {
	src := stubSource{items: func(context.Context) ([]models.MenuItem, error) {
		return []models.MenuItem{{Name: "Mandi", Price: decimal.NewFromInt(45), IsAvailable: true}}, nil
	}}
	l := NewLoader(src, LoaderOptions{})

	snap := l.Fetch(context.Background())

	assert.False(t, snap.Fallback)
	assert.True(t, snap.StaticCategories)
	assert.Len(t, snap.Categories, 5)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Mandi", snap.Items[0].Name)
}

func TestFallbackStaticCatalog(t *testing.T) {
	src := stubSource{categories: func(context.Context) ([]models.Category, error) {
		return nil, errors.New("down")
	}}

	without := noSleep(NewLoader(src, LoaderOptions{})).Fetch(context.Background())
	assert.Empty(t, without.Items)

	with := noSleep(NewLoader(src, LoaderOptions{StaticCatalog: true})).Fetch(context.Background())
	assert.NotEmpty(t, with.Items)
	for _, it := range with.Items {
		assert.True(t, it.Price.IsPositive(), it.Name)
	}
}

// gatedSource hands each ListCategories call to the test, which decides when
// and with what it returns.
type gatedSource struct {
	calls chan chan []models.Category
}

func (g *gatedSource) ListCategories(context.Context) ([]models.Category, error) {
	reply := make(chan []models.Category)
	g.calls <- reply
	return <-reply, nil
}

func (g *gatedSource) ListItems(context.Context) ([]models.MenuItem, error) {
	return nil, nil
}

func TestOverlappingFetchesLaterStartWins(t *testing.T) {
	cases := []struct {
		name       string
		olderFirst bool
	}{
		{name: "newer completes first", olderFirst: false},
		{name: "older completes first", olderFirst: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &gatedSource{calls: make(chan chan []models.Category)}
			l := NewLoader(src, LoaderOptions{Timeout: 5 * time.Second})
			ctx := context.Background()

			older := make(chan Snapshot, 1)
			newer := make(chan Snapshot, 1)
			go func() { older <- l.Fetch(ctx) }()
			replyOld := <-src.calls
			go func() { newer <- l.Fetch(ctx) }()
			replyNew := <-src.calls

			if tc.olderFirst {
				replyOld <- []models.Category{{Slug: "old"}}
				<-older
				replyNew <- []models.Category{{Slug: "new"}}
				<-newer
			} else {
				replyNew <- []models.Category{{Slug: "new"}}
				got := <-newer
				assert.Equal(t, "new", got.Categories[0].Slug)
				replyOld <- []models.Category{{Slug: "old"}}
				stale := <-older
				assert.Equal(t, "new", stale.Categories[0].Slug)
			}

			cur, ok := l.Current()
			require.True(t, ok)
			assert.Equal(t, "new", cur.Categories[0].Slug)
			assert.Equal(t, uint64(2), cur.Generation)
		})
	}
}

func newCache(t *testing.T) (*redisclient.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), mr
}

func TestLoaderSharesSnapshotThroughCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)

	good := stubSource{categories: func(context.Context) ([]models.Category, error) {
		return []models.Category{{Slug: "mains", Name: "Mains"}}, nil
	}}
	first := NewLoader(good, LoaderOptions{Cache: cache, CacheTTL: time.Minute})
	first.Fetch(ctx)
	require.True(t, mr.Exists(cache.MenuSnapshotKey()))

	var mu sync.Mutex
	hits := 0
	counting := stubSource{categories: func(context.Context) ([]models.Category, error) {
		mu.Lock()
		hits++
		mu.Unlock()
		return nil, errors.New("should not be called")
	}}
	second := NewLoader(counting, LoaderOptions{Cache: cache, CacheTTL: time.Minute})
	snap := second.Get(ctx)

	assert.False(t, snap.Fallback)
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, "Mains", snap.Categories[0].Name)
	assert.Zero(t, hits)
}

func TestFallbackIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	src := stubSource{categories: func(context.Context) ([]models.Category, error) {
		return nil, errors.New("down")
	}}
	l := noSleep(NewLoader(src, LoaderOptions{Cache: cache, CacheTTL: time.Minute}))

	snap := l.Get(ctx)

	assert.True(t, snap.Fallback)
	assert.False(t, mr.Exists(cache.MenuSnapshotKey()))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	var calls atomic.Int32
	src := stubSource{categories: func(context.Context) ([]models.Category, error) {
		calls.Add(1)
		return []models.Category{{Slug: "mains"}}, nil
	}}
	l := NewLoader(src, LoaderOptions{Cache: cache, CacheTTL: time.Minute})

	l.Get(ctx)
	l.Get(ctx)
	assert.Equal(t, int32(1), calls.Load())

	l.Invalidate(ctx)
	assert.False(t, mr.Exists(cache.MenuSnapshotKey()))
	_, ok := l.Current()
	assert.False(t, ok)

	l.Get(ctx)
	assert.Equal(t, int32(2), calls.Load())
}
