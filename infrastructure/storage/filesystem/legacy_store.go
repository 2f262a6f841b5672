package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/logging"
)

// LegacyStore is the deprecated durable backend. It persists patterns
// into a tree keyed first by status, then by category
// (patterns/discovered/api.json, patterns/approved/security.json).
// Moving a pattern between statuses rewrites both shards on SaveAll.
//
// New projects use UnifiedStore; this backend remains fully functional
// so existing trees stay readable and migration round-trips can be
// exercised.
type LegacyStore struct {
	root string
	dir  string

	mu          sync.RWMutex
	patterns    map[string]*pattern.Pattern
	initialized bool

	emitter *pattern.Emitter
}

// NewLegacyStore creates a legacy store rooted at the given directory.
// Initialize must be called before use.
func NewLegacyStore(root string) *LegacyStore {
	return &LegacyStore{
		root:     root,
		dir:      filepath.Join(root, patternsDirName),
		patterns: make(map[string]*pattern.Pattern),
		emitter:  pattern.NewEmitter(),
	}
}

// Initialize creates the storage tree and loads every shard into
// memory. Idempotent.
func (s *LegacyStore) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: create storage directory: %v", pattern.ErrStorage, err)
	}

	for _, status := range pattern.Statuses() {
		statusDir := filepath.Join(s.dir, string(status))
		entries, err := os.ReadDir(statusDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.mu.Unlock()
			return fmt.Errorf("%w: read %s: %v", pattern.ErrStorage, statusDir, err)
		}

		for _, entry := range entries {
			if !isShardFile(entry) {
				continue
			}

			path := filepath.Join(statusDir, entry.Name())
			patterns, err := readLegacyFile(path, status)
			if err != nil {
				logging.Warn().
					Add(logging.File(path)).
					Add(logging.ErrorField(err)).
					Msg("skipping unreadable pattern shard")
				continue
			}
			for _, p := range patterns {
				s.patterns[p.ID] = p
			}
		}
	}

	s.initialized = true
	count := len(s.patterns)
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventLoaded, Metadata: map[string]any{"count": count}})
	return nil
}

// Close flushes the working set, so patterns added since the last
// SaveAll survive shutdown.
func (s *LegacyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	return s.flushLocked()
}

// Add inserts a new pattern into the working set.
func (s *LegacyStore) Add(ctx context.Context, p *pattern.Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return pattern.ErrInvalidPattern
	}

	s.mu.Lock()
	if _, exists := s.patterns[p.ID]; exists {
		s.mu.Unlock()
		return &pattern.AlreadyExistsError{ID: p.ID}
	}
	stored := p.Clone()
	s.patterns[p.ID] = stored
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventAdded, Pattern: stored.Clone()})
	return nil
}

// AddMany inserts a batch. The first duplicate aborts the batch;
// patterns inserted before it remain.
func (s *LegacyStore) AddMany(ctx context.Context, patterns []*pattern.Pattern) error {
	for _, p := range patterns {
		if err := s.Add(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the pattern or (nil, nil) when absent.
func (s *LegacyStore) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.patterns[id]
	if !exists {
		return nil, nil
	}
	return p.Clone(), nil
}

// Update merges a patch into the stored pattern.
func (s *LegacyStore) Update(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current, exists := s.patterns[id]
	if !exists {
		s.mu.Unlock()
		return nil, &pattern.NotFoundError{ID: id}
	}
	updated := patch.Apply(current)
	s.patterns[id] = updated
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventUpdated, Pattern: updated.Clone()})
	return updated.Clone(), nil
}

// Delete removes a pattern, reporting whether one was removed.
func (s *LegacyStore) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	p, exists := s.patterns[id]
	if !exists {
		s.mu.Unlock()
		return false, nil
	}
	delete(s.patterns, id)
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventDeleted, Pattern: p.Clone()})
	return true, nil
}

// Query applies filtering, sorting, and pagination.
func (s *LegacyStore) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return pattern.RunQuery(s.patterns, opts), nil
}

// GetAll returns every pattern.
func (s *LegacyStore) GetAll(ctx context.Context) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByCategory returns patterns in the category.
func (s *LegacyStore) GetByCategory(ctx context.Context, category pattern.Category) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{category}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByStatus returns patterns in the lifecycle state.
func (s *LegacyStore) GetByStatus(ctx context.Context, status pattern.Status) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Statuses: []pattern.Status{status}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByFile returns patterns with at least one location in the file.
func (s *LegacyStore) GetByFile(ctx context.Context, file string) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Files: []string{file}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// Count returns the number of patterns matching the filter.
func (s *LegacyStore) Count(ctx context.Context, filter pattern.Filter) (int, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Approve transitions the pattern to approved.
func (s *LegacyStore) Approve(ctx context.Context, id, approvedBy string) (*pattern.Pattern, error) {
	return s.transition(ctx, id, pattern.StatusApproved, approvedBy)
}

// Ignore transitions the pattern to ignored.
func (s *LegacyStore) Ignore(ctx context.Context, id string) (*pattern.Pattern, error) {
	return s.transition(ctx, id, pattern.StatusIgnored, "")
}

func (s *LegacyStore) transition(ctx context.Context, id string, to pattern.Status, approvedBy string) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	current, exists := s.patterns[id]
	if !exists {
		s.mu.Unlock()
		return nil, &pattern.NotFoundError{ID: id}
	}
	if err := pattern.ValidateTransition(id, current.Status, to); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	updated := current.Clone()
	updated.Status = to
	if to == pattern.StatusApproved {
		now := time.Now().UTC()
		updated.ApprovedAt = &now
		updated.ApprovedBy = approvedBy
	}
	s.patterns[id] = updated
	s.mu.Unlock()

	eventType := pattern.EventApproved
	if to == pattern.StatusIgnored {
		eventType = pattern.EventIgnored
	}
	s.emitter.Emit(pattern.Event{Type: eventType, Pattern: updated.Clone()})
	return updated.Clone(), nil
}

// SaveAll writes one shard per non-empty (status, category) pair and
// removes shards the working set no longer has patterns for. A status
// transition therefore moves the record between files here.
func (s *LegacyStore) SaveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.flushLocked()
	count := len(s.patterns)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.emitter.Emit(pattern.Event{Type: pattern.EventSaved, Metadata: map[string]any{"count": count}})
	return nil
}

type legacyShardKey struct {
	status   pattern.Status
	category pattern.Category
}

// flushLocked writes the working set to disk. Caller holds the lock.
func (s *LegacyStore) flushLocked() error {
	groups := make(map[legacyShardKey][]*pattern.Pattern)
	for _, p := range s.patterns {
		key := legacyShardKey{status: p.Status, category: p.Category}
		groups[key] = append(groups[key], p)
	}

	for key, patterns := range groups {
		pattern.SortPatterns(patterns, &pattern.Sort{Field: pattern.SortByName})

		shard := legacyFile{
			Version:     legacyVersion,
			Category:    key.category,
			LastUpdated: nowStamp(),
		}
		for _, p := range patterns {
			entry, err := legacyEntry(p)
			if err != nil {
				return fmt.Errorf("%w: encode pattern %s: %v", pattern.ErrStorage, p.ID, err)
			}
			shard.Patterns = append(shard.Patterns, entry)
		}

		path := s.shardPath(key.status, key.category)
		if err := writeJSONFile(path, &shard); err != nil {
			return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
		}
	}

	// Remove shards whose (status, category) pair emptied out, so a
	// status transition does not leave the record in both trees.
	for _, status := range pattern.Statuses() {
		statusDir := filepath.Join(s.dir, string(status))
		entries, err := os.ReadDir(statusDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("%w: read %s: %v", pattern.ErrStorage, statusDir, err)
		}
		for _, entry := range entries {
			if !isShardFile(entry) {
				continue
			}
			key := legacyShardKey{status: status, category: categoryFromFilename(entry.Name())}
			if len(groups[key]) == 0 {
				if err := os.Remove(filepath.Join(statusDir, entry.Name())); err != nil {
					return fmt.Errorf("%w: remove empty shard: %v", pattern.ErrStorage, err)
				}
			}
		}
	}

	return nil
}

// Clear empties the working set and removes every status tree on disk.
func (s *LegacyStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.patterns = make(map[string]*pattern.Pattern)
	for _, status := range pattern.Statuses() {
		if err := os.RemoveAll(filepath.Join(s.dir, string(status))); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: remove status tree: %v", pattern.ErrStorage, err)
		}
	}
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventCleared})
	return nil
}

// Exists reports whether the ID is present.
func (s *LegacyStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.patterns[id]
	return exists, nil
}

// Summaries returns lightweight projections of matching patterns.
func (s *LegacyStore) Summaries(ctx context.Context, opts *pattern.QueryOptions) ([]pattern.Summary, error) {
	queryOpts := pattern.QueryOptions{}
	if opts != nil {
		queryOpts = *opts
	}

	result, err := s.Query(ctx, queryOpts)
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
func (s *LegacyStore) Events() *pattern.Emitter {
	return s.emitter
}

func (s *LegacyStore) shardPath(status pattern.Status, category pattern.Category) string {
	return filepath.Join(s.dir, string(status), string(category)+".json")
}

// Ensure LegacyStore implements the pattern repository contract.
var _ pattern.Repository = (*LegacyStore)(nil)
