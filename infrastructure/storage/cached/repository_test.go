package cached

import (
	"context"
	"testing"
	"time"

	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/storage/memory"
)

func newTestCache(t *testing.T, opts Options) (*Repository, *memory.Repository) {
	t.Helper()

	inner := memory.NewRepository()
	cache := New(inner, opts)
	if err := cache.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return cache, inner
}

func cachePattern(name string, confidence float64) *pattern.Pattern {
	return pattern.New(pattern.CreateInput{
		Category:   pattern.CategoryAPI,
		Name:       name,
		Confidence: confidence,
	})
}

func TestCache_ServesStaleUntilExpiry(t *testing.T) {
	t.Parallel()

	cache, inner := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}

	// Prime the cache.
	if _, err := cache.Get(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	// Mutate behind the decorator's back.
	confidence := 0.99
	if _, err := inner.Update(ctx, p.ID, pattern.Patch{Confidence: &confidence}); err != nil {
		t.Fatal(err)
	}

	// The cache still serves the old value.
	got, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want stale 0.5", got.Confidence)
	}

	// Dropping the cache exposes the inner state.
	cache.ClearCache()
	got, err = cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence != 0.99 {
		t.Errorf("Confidence after ClearCache = %v, want 0.99", got.Confidence)
	}
}

func TestCache_ExpiryRefreshes(t *testing.T) {
	t.Parallel()

	cache, inner := newTestCache(t, Options{PatternTTL: 10 * time.Millisecond, QueryTTL: 10 * time.Millisecond})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	confidence := 0.99
	if _, err := inner.Update(ctx, p.ID, pattern.Patch{Confidence: &confidence}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)

	got, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence != 0.99 {
		t.Errorf("Confidence after TTL = %v, want refreshed 0.99", got.Confidence)
	}
}

func TestCache_WriteThroughInvalidates(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Query(ctx, pattern.QueryOptions{}); err != nil {
		t.Fatal(err)
	}

	// A write through the decorator is visible immediately despite the
	// long TTLs.
	confidence := 0.9
	if _, err := cache.Update(ctx, p.ID, pattern.Patch{Confidence: &confidence}); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence after write-through = %v, want 0.9", got.Confidence)
	}

	result, err := cache.Query(ctx, pattern.QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Patterns[0].Confidence != 0.9 {
		t.Errorf("query result confidence = %v, want 0.9", result.Patterns[0].Confidence)
	}
}

func TestCache_QueryCacheKeyedByShape(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	if err := cache.AddMany(ctx, []*pattern.Pattern{
		cachePattern("A", 0.5),
		cachePattern("B", 0.9),
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.Query(ctx, pattern.QueryOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Query(ctx, pattern.QueryOptions{Limit: 1}); err != nil {
		t.Fatal(err)
	}

	stats := cache.CacheStats()
	if stats.QueryEntries != 2 {
		t.Errorf("QueryEntries = %d, want 2 distinct shapes", stats.QueryEntries)
	}

	// A repeated query hits the existing entry.
	if _, err := cache.Query(ctx, pattern.QueryOptions{Limit: 1}); err != nil {
		t.Fatal(err)
	}
	if stats := cache.CacheStats(); stats.QueryEntries != 2 {
		t.Errorf("QueryEntries after repeat = %d, want 2", stats.QueryEntries)
	}
}

func TestCache_CachedResultsAreCopies(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}

	first, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	first.Name = "mutated"

	second, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.Name != "A" {
		t.Error("cache handed out a shared reference")
	}
}

func TestCache_TransitionInvalidates(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.Approve(ctx, p.ID, "reviewer"); err != nil {
		t.Fatal(err)
	}

	got, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != pattern.StatusApproved {
		t.Errorf("Status = %v, want approved right after Approve", got.Status)
	}
}

func TestCache_ClearDropsEverything(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, Options{PatternTTL: time.Hour, QueryTTL: time.Hour})
	ctx := context.Background()

	p := cachePattern("A", 0.5)
	if err := cache.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Get(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Query(ctx, pattern.QueryOptions{}); err != nil {
		t.Fatal(err)
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatal(err)
	}

	stats := cache.CacheStats()
	if stats.PatternEntries != 0 || stats.QueryEntries != 0 {
		t.Errorf("CacheStats after Clear = %+v, want empty", stats)
	}

	got, err := cache.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("Get() after Clear = %+v, want nil", got)
	}
}
