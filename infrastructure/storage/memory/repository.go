// Package memory provides the in-memory pattern repository. It is the
// reference implementation of the repository contract and the default
// backing store for ephemeral use and for the caching decorator in
// tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/driftdev/drift/domain/pattern"
)

// Repository is a mutex-guarded, map-backed pattern repository with no
// persistence. SaveAll is a no-op.
type Repository struct {
	mu       sync.RWMutex
	patterns map[string]*pattern.Pattern
	emitter  *pattern.Emitter
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		patterns: make(map[string]*pattern.Pattern),
		emitter:  pattern.NewEmitter(),
	}
}

// Initialize is a no-op for the in-memory backend.
func (r *Repository) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op for the in-memory backend.
func (r *Repository) Close() error {
	return nil
}

// Add inserts a new pattern.
func (r *Repository) Add(ctx context.Context, p *pattern.Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return pattern.ErrInvalidPattern
	}

	r.mu.Lock()
	if _, exists := r.patterns[p.ID]; exists {
		r.mu.Unlock()
		return &pattern.AlreadyExistsError{ID: p.ID}
	}
	stored := p.Clone()
	r.patterns[p.ID] = stored
	r.mu.Unlock()

	r.emitter.Emit(pattern.Event{Type: pattern.EventAdded, Pattern: stored.Clone()})
	return nil
}

// AddMany inserts a batch. The first duplicate aborts the batch;
// patterns inserted before it remain.
func (r *Repository) AddMany(ctx context.Context, patterns []*pattern.Pattern) error {
	for _, p := range patterns {
		if err := r.Add(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the pattern or (nil, nil) when absent.
func (r *Repository) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.patterns[id]
	if !exists {
		return nil, nil
	}
	return p.Clone(), nil
}

// Update merges a patch into the stored pattern.
func (r *Repository) Update(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	current, exists := r.patterns[id]
	if !exists {
		r.mu.Unlock()
		return nil, &pattern.NotFoundError{ID: id}
	}
	updated := patch.Apply(current)
	r.patterns[id] = updated
	r.mu.Unlock()

	r.emitter.Emit(pattern.Event{Type: pattern.EventUpdated, Pattern: updated.Clone()})
	return updated.Clone(), nil
}

// Delete removes a pattern, reporting whether one was removed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	p, exists := r.patterns[id]
	if !exists {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.patterns, id)
	r.mu.Unlock()

	r.emitter.Emit(pattern.Event{Type: pattern.EventDeleted, Pattern: p.Clone()})
	return true, nil
}

// Query applies filtering, sorting, and pagination.
func (r *Repository) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return pattern.RunQuery(r.patterns, opts), nil
}

// GetAll returns every pattern.
func (r *Repository) GetAll(ctx context.Context) ([]*pattern.Pattern, error) {
	result, err := r.Query(ctx, pattern.QueryOptions{})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByCategory returns patterns in the category.
func (r *Repository) GetByCategory(ctx context.Context, category pattern.Category) ([]*pattern.Pattern, error) {
	result, err := r.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{category}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByStatus returns patterns in the lifecycle state.
func (r *Repository) GetByStatus(ctx context.Context, status pattern.Status) ([]*pattern.Pattern, error) {
	result, err := r.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Statuses: []pattern.Status{status}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByFile returns patterns with at least one location in the file.
func (r *Repository) GetByFile(ctx context.Context, file string) ([]*pattern.Pattern, error) {
	result, err := r.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Files: []string{file}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// Count returns the number of patterns matching the filter.
func (r *Repository) Count(ctx context.Context, filter pattern.Filter) (int, error) {
	result, err := r.Query(ctx, pattern.QueryOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Approve transitions the pattern to approved.
func (r *Repository) Approve(ctx context.Context, id, approvedBy string) (*pattern.Pattern, error) {
	return r.transition(ctx, id, pattern.StatusApproved, approvedBy)
}

// Ignore transitions the pattern to ignored.
func (r *Repository) Ignore(ctx context.Context, id string) (*pattern.Pattern, error) {
	return r.transition(ctx, id, pattern.StatusIgnored, "")
}

func (r *Repository) transition(ctx context.Context, id string, to pattern.Status, approvedBy string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	current, exists := r.patterns[id]
	if !exists {
		r.mu.Unlock()
		return nil, &pattern.NotFoundError{ID: id}
	}
	if err := pattern.ValidateTransition(id, current.Status, to); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	updated := current.Clone()
	updated.Status = to
	if to == pattern.StatusApproved {
		now := time.Now().UTC()
		updated.ApprovedAt = &now
		updated.ApprovedBy = approvedBy
	}
	r.patterns[id] = updated
	r.mu.Unlock()

	eventType := pattern.EventApproved
	if to == pattern.StatusIgnored {
		eventType = pattern.EventIgnored
	}
	r.emitter.Emit(pattern.Event{Type: eventType, Pattern: updated.Clone()})
	return updated.Clone(), nil
}

// SaveAll is a no-op: the working set is the storage.
func (r *Repository) SaveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	count := len(r.patterns)
	r.mu.RUnlock()

	r.emitter.Emit(pattern.Event{Type: pattern.EventSaved, Metadata: map[string]any{"count": count}})
	return nil
}

// Clear empties the repository.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.patterns = make(map[string]*pattern.Pattern)
	r.mu.Unlock()

	r.emitter.Emit(pattern.Event{Type: pattern.EventCleared})
	return nil
}

// Exists reports whether the ID is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.patterns[id]
	return exists, nil
}

// Summaries returns lightweight projections of matching patterns.
func (r *Repository) Summaries(ctx context.Context, opts *pattern.QueryOptions) ([]pattern.Summary, error) {
	queryOpts := pattern.QueryOptions{}
	if opts != nil {
		queryOpts = *opts
	}

	result, err := r.Query(ctx, queryOpts)
	if err != nil {
		return nil, err
	}

	summaries := make([]pattern.Summary, 0, len(result.Patterns))
	for _, p := range result.Patterns {
		summaries = append(summaries, p.Summarize())
	}
	return summaries, nil
}

// Events exposes the repository's event emitter.
func (r *Repository) Events() *pattern.Emitter {
	return r.emitter
}

// Ensure Repository implements the pattern repository contract.
var _ pattern.Repository = (*Repository)(nil)
