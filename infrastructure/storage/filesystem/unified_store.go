package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/logging"
)

// UnifiedOptions configures the unified repository.
type UnifiedOptions struct {
	// AutoMigrate imports a legacy status-partitioned layout found
	// under the same root during Initialize.
	AutoMigrate bool

	// KeepLegacyFiles leaves the legacy files in place after
	// migration, for rollback safety.
	KeepLegacyFiles bool
}

// UnifiedStore is the recommended durable backend. It persists one
// JSON shard per category with the status embedded in each record,
// and keeps a full in-memory working set between SaveAll calls.
//
// The storage root is owned by exactly one store instance at a time;
// concurrent external writers are out of scope and may corrupt shards.
type UnifiedStore struct {
	root string
	dir  string
	opts UnifiedOptions

	mu          sync.RWMutex
	patterns    map[string]*pattern.Pattern
	initialized bool

	emitter *pattern.Emitter

	watcher   *fsnotify.Watcher
	watchStop chan struct{}
	watchWg   sync.WaitGroup
}

// StorageStats describes the on-disk state of a unified store.
type StorageStats struct {
	TotalPatterns int                      `json:"totalPatterns"`
	ByCategory    map[pattern.Category]int `json:"byCategory"`
	ByStatus      map[pattern.Status]int   `json:"byStatus"`
	FileCount     int                      `json:"fileCount"`
}

// NewUnifiedStore creates a unified store rooted at the given
// directory. Initialize must be called before use.
func NewUnifiedStore(root string, opts UnifiedOptions) *UnifiedStore {
	return &UnifiedStore{
		root:     root,
		dir:      filepath.Join(root, patternsDirName),
		opts:     opts,
		patterns: make(map[string]*pattern.Pattern),
		emitter:  pattern.NewEmitter(),
	}
}

// Initialize creates the storage directory, runs migration when
// configured, and loads every shard into memory. Idempotent.
func (s *UnifiedStore) Initialize(ctx context.Context) error {
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

	if err := s.loadLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	if s.opts.AutoMigrate && hasLegacyLayout(s.dir) {
		if err := s.migrateLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	if err := writeFormatMarker(s.dir, unifiedVersion); err != nil {
		s.mu.Unlock()
		return err
	}

	s.initialized = true
	count := len(s.patterns)
	s.mu.Unlock()

	s.emitter.Emit(pattern.Event{Type: pattern.EventLoaded, Metadata: map[string]any{"count": count}})
	return nil
}

// loadLocked reads every unified shard into the working set. A corrupt
// shard is skipped so one bad category cannot take down the rest.
func (s *UnifiedStore) loadLocked() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: read storage directory: %v", pattern.ErrStorage, err)
	}

	for _, entry := range entries {
		if !isShardFile(entry) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		shard, err := readUnifiedFile(path)
		if err != nil {
			logging.Warn().
				Add(logging.File(path)).
				Add(logging.ErrorField(err)).
				Msg("skipping unreadable pattern shard")
			continue
		}

		for _, p := range shard.Patterns {
			if p.Category == "" {
				p.Category = shard.Category
			}
			if p.ConfidenceLevel == "" {
				p.ConfidenceLevel = pattern.LevelForConfidence(p.Confidence)
			}
			s.patterns[p.ID] = p
		}
	}
	return nil
}

// migrateLocked imports the legacy status-partitioned layout. Patterns
// already present in the unified working set win on ID conflict, so
// re-running migration cannot duplicate or clobber migrated data.
func (s *UnifiedStore) migrateLocked() error {
	var migrated int
	for _, status := range pattern.Statuses() {
		statusDir := filepath.Join(s.dir, string(status))
		entries, err := os.ReadDir(statusDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("%w: read legacy directory %s: %v", pattern.ErrStorage, statusDir, err)
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
					Msg("skipping unreadable legacy shard")
				continue
			}

			for _, p := range patterns {
				if _, exists := s.patterns[p.ID]; exists {
					continue
				}
				s.patterns[p.ID] = p
				migrated++
			}
		}
	}

	if err := s.flushLocked(); err != nil {
		return err
	}

	if !s.opts.KeepLegacyFiles {
		for _, status := range pattern.Statuses() {
			statusDir := filepath.Join(s.dir, string(status))
			if err := os.RemoveAll(statusDir); err != nil {
				return fmt.Errorf("%w: remove legacy directory %s: %v", pattern.ErrStorage, statusDir, err)
			}
		}
	}

	logging.Info().
		Add(logging.Count(migrated)).
		Add(logging.Bool("keep_legacy", s.opts.KeepLegacyFiles)).
		Msg("migrated legacy pattern storage to unified format")
	return nil
}

// Close stops the watcher if one is running and flushes the working
// set, so patterns added since the last SaveAll survive shutdown.
func (s *UnifiedStore) Close() error {
	s.stopWatch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil
	}
	return s.flushLocked()
}

// Add inserts a new pattern into the working set.
func (s *UnifiedStore) Add(ctx context.Context, p *pattern.Pattern) error {
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
func (s *UnifiedStore) AddMany(ctx context.Context, patterns []*pattern.Pattern) error {
	for _, p := range patterns {
		if err := s.Add(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the pattern or (nil, nil) when absent.
func (s *UnifiedStore) Get(ctx context.Context, id string) (*pattern.Pattern, error) {
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
func (s *UnifiedStore) Update(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
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

// Delete removes a pattern from the working set. The category shard is
// rewritten (or removed, when the category became empty) on SaveAll.
func (s *UnifiedStore) Delete(ctx context.Context, id string) (bool, error) {
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
func (s *UnifiedStore) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return pattern.RunQuery(s.patterns, opts), nil
}

// GetAll returns every pattern.
func (s *UnifiedStore) GetAll(ctx context.Context) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByCategory returns patterns in the category.
func (s *UnifiedStore) GetByCategory(ctx context.Context, category pattern.Category) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{category}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByStatus returns patterns in the lifecycle state.
func (s *UnifiedStore) GetByStatus(ctx context.Context, status pattern.Status) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Statuses: []pattern.Status{status}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// GetByFile returns patterns with at least one location in the file.
func (s *UnifiedStore) GetByFile(ctx context.Context, file string) ([]*pattern.Pattern, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Files: []string{file}},
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// Count returns the number of patterns matching the filter.
func (s *UnifiedStore) Count(ctx context.Context, filter pattern.Filter) (int, error) {
	result, err := s.Query(ctx, pattern.QueryOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Approve transitions the pattern to approved.
func (s *UnifiedStore) Approve(ctx context.Context, id, approvedBy string) (*pattern.Pattern, error) {
	return s.transition(ctx, id, pattern.StatusApproved, approvedBy)
}

// Ignore transitions the pattern to ignored.
func (s *UnifiedStore) Ignore(ctx context.Context, id string) (*pattern.Pattern, error) {
	return s.transition(ctx, id, pattern.StatusIgnored, "")
}

func (s *UnifiedStore) transition(ctx context.Context, id string, to pattern.Status, approvedBy string) (*pattern.Pattern, error) {
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

// SaveAll writes one shard per non-empty category and removes shards
// of categories that no longer hold patterns. Safe to call repeatedly.
func (s *UnifiedStore) SaveAll(ctx context.Context) error {
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

// flushLocked writes the working set to disk. Caller holds the lock.
func (s *UnifiedStore) flushLocked() error {
	rearm := s.suppressWatchLocked()
	defer rearm()

	byCategory := make(map[pattern.Category][]*pattern.Pattern)
	for _, p := range s.patterns {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	for category, patterns := range byCategory {
		pattern.SortPatterns(patterns, &pattern.Sort{Field: pattern.SortByName})
		shard := unifiedFile{
			Version:  unifiedVersion,
			Category: category,
			Patterns: patterns,
		}
		if err := writeJSONFile(s.shardPath(category), &shard); err != nil {
			return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
		}
	}

	// No empty files left behind: drop shards whose category lost its
	// last pattern.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: read storage directory: %v", pattern.ErrStorage, err)
	}
	for _, entry := range entries {
		if !isShardFile(entry) {
			continue
		}
		category := categoryFromFilename(entry.Name())
		if len(byCategory[category]) == 0 {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				return fmt.Errorf("%w: remove empty shard: %v", pattern.ErrStorage, err)
			}
		}
	}

	return nil
}

// Clear empties the working set and deletes every shard on disk.
func (s *UnifiedStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.clearLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emitter.Emit(pattern.Event{Type: pattern.EventCleared})
	return nil
}

func (s *UnifiedStore) clearLocked() error {
	rearm := s.suppressWatchLocked()
	defer rearm()

	s.patterns = make(map[string]*pattern.Pattern)

	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: read storage directory: %v", pattern.ErrStorage, err)
	}
	for _, entry := range entries {
		if !isShardFile(entry) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("%w: remove shard: %v", pattern.ErrStorage, err)
		}
	}
	return nil
}

// Exists reports whether the ID is present.
func (s *UnifiedStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.patterns[id]
	return exists, nil
}

// Summaries returns lightweight projections of matching patterns.
func (s *UnifiedStore) Summaries(ctx context.Context, opts *pattern.QueryOptions) ([]pattern.Summary, error) {
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
func (s *UnifiedStore) Events() *pattern.Emitter {
	return s.emitter
}

// Stats reports the current on-disk and in-memory storage shape.
func (s *UnifiedStore) Stats(ctx context.Context) (*StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &StorageStats{
		ByCategory: make(map[pattern.Category]int),
		ByStatus:   make(map[pattern.Status]int),
	}
	for _, p := range s.patterns {
		stats.TotalPatterns++
		stats.ByCategory[p.Category]++
		stats.ByStatus[p.Status]++
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: read storage directory: %v", pattern.ErrStorage, err)
	}
	for _, entry := range entries {
		if isShardFile(entry) {
			stats.FileCount++
		}
	}

	return stats, nil
}

// Watch reloads the working set when shard files change on disk, for
// deployments where a separate scan process refreshes the knowledge
// base. Emits patterns:loaded after each reload. Stops when ctx ends
// or Close is called.
func (s *UnifiedStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %v", pattern.ErrStorage, err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close() // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("%w: watch %s: %v", pattern.ErrStorage, s.dir, err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.watchStop = make(chan struct{})
	stop := s.watchStop
	s.mu.Unlock()

	s.watchWg.Add(1)
	go func() {
		defer s.watchWg.Done()
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					logging.Warn().Add(logging.ErrorField(err)).Msg("pattern storage reload failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Add(logging.ErrorField(err)).Msg("pattern storage watcher error")
			}
		}
	}()

	return nil
}

// reload replaces the working set with the current on-disk state.
func (s *UnifiedStore) reload() error {
	s.mu.Lock()
	s.patterns = make(map[string]*pattern.Pattern)
	err := s.loadLocked()
	count := len(s.patterns)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.emitter.Emit(pattern.Event{Type: pattern.EventLoaded, Metadata: map[string]any{"count": count}})
	return nil
}

// suppressWatchLocked detaches the watcher while the store writes its
// own shards. Without it, SaveAll's renames would queue a reload that
// clobbers any in-memory mutation made between the flush and the
// reload. Returns the re-arm function; caller holds the lock.
func (s *UnifiedStore) suppressWatchLocked() func() {
	if s.watcher == nil {
		return func() {}
	}
	w := s.watcher
	if err := w.Remove(s.dir); err != nil {
		return func() {}
	}
	return func() {
		if err := w.Add(s.dir); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("pattern storage watcher re-arm failed")
		}
	}
}

func (s *UnifiedStore) stopWatch() {
	s.mu.Lock()
	if s.watchStop != nil {
		close(s.watchStop)
		s.watchStop = nil
		s.watcher = nil
	}
	s.mu.Unlock()
	s.watchWg.Wait()
}

func (s *UnifiedStore) shardPath(category pattern.Category) string {
	return filepath.Join(s.dir, string(category)+".json")
}

// hasLegacyLayout reports whether a status-partitioned layout exists
// under the patterns directory.
func hasLegacyLayout(dir string) bool {
	for _, status := range pattern.Statuses() {
		if info, err := os.Stat(filepath.Join(dir, string(status))); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// writeFormatMarker records the layout version in the marker file.
func writeFormatMarker(dir, version string) error {
	path := filepath.Join(dir, formatMarkerName)
	if err := os.WriteFile(path, []byte(version+"\n"), filePerm); err != nil {
		return fmt.Errorf("%w: write format marker: %v", pattern.ErrStorage, err)
	}
	return nil
}

// Ensure UnifiedStore implements the pattern repository contract.
var _ pattern.Repository = (*UnifiedStore)(nil)
