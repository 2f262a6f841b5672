// Package cached provides a TTL caching decorator over any pattern
// repository.
package cached

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/logging"
)

// Options configures the caching decorator.
type Options struct {
	// PatternTTL bounds the life of point-lookup cache entries.
	PatternTTL time.Duration

	// QueryTTL bounds the life of query result cache entries.
	QueryTTL time.Duration
}

// DefaultOptions returns the default cache TTLs.
func DefaultOptions() Options {
	return Options{
		PatternTTL: 30 * time.Second,
		QueryTTL:   10 * time.Second,
	}
}

// Stats reports current cache sizes.
type Stats struct {
	PatternEntries int `json:"patternEntries"`
	QueryEntries   int `json:"queryEntries"`
}

type patternEntry struct {
	pattern   *pattern.Pattern
	expiresAt time.Time
}

type queryEntry struct {
	result    *pattern.QueryResult
	expiresAt time.Time
}

// Repository wraps an inner repository with two independent TTL
// caches: one keyed by pattern ID, one keyed by query shape.
//
// Reads are served from cache without consulting the inner repository,
// so a mutation applied directly to the inner repository stays
// invisible here until the entry expires or ClearCache runs. That
// staleness is an accepted tradeoff. Writes performed through the
// decorator invalidate the affected entries before returning, so a
// subsequent read through the decorator always reflects the write.
type Repository struct {
	inner pattern.Repository
	opts  Options

	mu       sync.Mutex
	patterns map[string]patternEntry
	queries  map[string]queryEntry
}

// New wraps a repository with the caching decorator.
func New(inner pattern.Repository, opts Options) *Repository {
	return &Repository{
		inner:    inner,
		opts:     opts,
		patterns: make(map[string]patternEntry),
		queries:  make(map[string]queryEntry),
	}
}

// Initialize initializes the inner repository.
func (c *Repository) Initialize(ctx context.Context) error {
	return c.inner.Initialize(ctx)
}

// Close clears the caches and closes the inner repository.
func (c *Repository) Close() error {
	c.ClearCache()
	return c.inner.Close()
}

// Add inserts through the inner repository and invalidates the caches
// for the new pattern.
func (c *Repository) Add(ctx context.Context, p *pattern.Pattern) error {
	if err := c.inner.Add(ctx, p); err != nil {
		return err
	}
	c.invalidate(p.ID)
	return nil
}

// AddMany inserts through the inner repository. Caches for every
// inserted pattern are invalidated, even on partial failure.
func (c *Repository) AddMany(ctx context.Context, patterns []*pattern.Pattern) error {
	err := c.inner.AddMany(ctx, patterns)
	for _, p := range patterns {
		c.invalidate(p.ID)
	}
	return err
}

// Get serves from the pattern cache, falling back to the inner
// repository on miss and caching the result.
func (c *Repository) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	c.mu.Lock()
	if entry, ok := c.patterns[id]; ok && time.Now().Before(entry.expiresAt) {
		p := entry.pattern.Clone()
		c.mu.Unlock()
		logging.Trace().
			Add(logging.PatternID(id)).
			Add(logging.Cached(true)).
			Msg("pattern served from cache")
		return p, nil
	}
	c.mu.Unlock()

	p, err := c.inner.Get(ctx, id)
	if err != nil || p == nil {
		return p, err
	}

	c.mu.Lock()
	c.patterns[id] = patternEntry{pattern: p.Clone(), expiresAt: time.Now().Add(c.opts.PatternTTL)}
	c.mu.Unlock()
	return p, nil
}

// Update writes through and invalidates the affected entries.
func (c *Repository) Update(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
	p, err := c.inner.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.invalidate(id)
	return p, nil
}

// Delete writes through and invalidates the affected entries.
func (c *Repository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := c.inner.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		c.invalidate(id)
	}
	return deleted, nil
}

// Query serves from the query cache, keyed by the serialized query
// shape, falling back to the inner repository on miss.
func (c *Repository) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	key := queryKey(opts)

	c.mu.Lock()
	if entry, ok := c.queries[key]; ok && time.Now().Before(entry.expiresAt) {
		result := cloneResult(entry.result)
		c.mu.Unlock()
		return result, nil
	}
	c.mu.Unlock()

	result, err := c.inner.Query(ctx, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.queries[key] = queryEntry{result: cloneResult(result), expiresAt: time.Now().Add(c.opts.QueryTTL)}
	c.mu.Unlock()
	return result, nil
}

// GetAll is served through the cached Query path.
func (c *Repository) GetAll(ctx context.Context) ([]*pattern.Pattern, error) {
	result, err := c.Query(ctx, pattern.QueryOptions{})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByCategory is served through the cached Query path.
func (c *Repository) GetByCategory(ctx context.Context, category pattern.Category) ([]*pattern.Pattern, error) {
	result, err := c.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{category}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByStatus is served through the cached Query path.
func (c *Repository) GetByStatus(ctx context.Context, status pattern.Status) ([]*pattern.Pattern, error) {
	result, err := c.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Statuses: []pattern.Status{status}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByFile is served through the cached Query path.
func (c *Repository) GetByFile(ctx context.Context, file string) ([]*pattern.Pattern, error) {
	result, err := c.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Files: []string{file}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// Count is served through the cached Query path.
func (c *Repository) Count(ctx context.Context, filter pattern.Filter) (int, error) {
	result, err := c.Query(ctx, pattern.QueryOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Approve writes through and invalidates the affected entries.
func (c *Repository) Approve(ctx context.Context, id, approvedBy string) (*pattern.Pattern, error) {
	p, err := c.inner.Approve(ctx, id, approvedBy)
	if err != nil {
		return nil, err
	}
	c.invalidate(id)
	return p, nil
}

// Ignore writes through and invalidates the affected entries.
func (c *Repository) Ignore(ctx context.Context, id string) (*pattern.Pattern, error) {
	p, err := c.inner.Ignore(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidate(id)
	return p, nil
}

// SaveAll delegates to the inner repository.
func (c *Repository) SaveAll(ctx context.Context) error {
	return c.inner.SaveAll(ctx)
}

// Clear empties the inner repository and both caches.
func (c *Repository) Clear(ctx context.Context) error {
	if err := c.inner.Clear(ctx); err != nil {
		return err
	}
	c.ClearCache()
	return nil
}

// Exists consults the pattern cache before the inner repository.
func (c *Repository) Exists(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	if entry, ok := c.patterns[id]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return true, nil
	}
	c.mu.Unlock()

	return c.inner.Exists(ctx, id)
}

// Summaries delegates to the inner repository; summaries are cheap
// projections and not worth a third cache.
func (c *Repository) Summaries(ctx context.Context, opts *pattern.QueryOptions) ([]pattern.Summary, error) {
	return c.inner.Summaries(ctx, opts)
}

// Events exposes the inner repository's emitter; the decorator adds
// no events of its own.
func (c *Repository) Events() *pattern.Emitter {
	return c.inner.Events()
}

// CacheStats reports current cache sizes, expired entries included.
func (c *Repository) CacheStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		PatternEntries: len(c.patterns),
		QueryEntries:   len(c.queries),
	}
}

// ClearCache drops both caches.
func (c *Repository) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = make(map[string]patternEntry)
	c.queries = make(map[string]queryEntry)
}

// invalidate drops the pattern entry for the ID and the whole query
// cache. Query results can include any pattern, so per-query surgical
// invalidation is not attempted.
func (c *Repository) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.patterns, id)
	c.queries = make(map[string]queryEntry)
}

// queryKey produces a deterministic cache key for a query shape.
func queryKey(opts pattern.QueryOptions) string {
	data, err := json.Marshal(opts)
	if err != nil {
		// QueryOptions holds only marshalable fields; treat failure as
		// an uncacheable one-off key.
		return time.Now().String()
	}
	return string(data)
}

func cloneResult(r *pattern.QueryResult) *pattern.QueryResult {
	patterns := make([]*pattern.Pattern, len(r.Patterns))
	for i, p := range r.Patterns {
		patterns[i] = p.Clone()
	}
	return &pattern.QueryResult{
		Patterns: patterns,
		Total:    r.Total,
		HasMore:  r.HasMore,
	}
}

// Ensure Repository implements the pattern repository contract.
var _ pattern.Repository = (*Repository)(nil)
