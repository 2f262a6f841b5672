package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/driftdev/drift/domain/pattern"
)

// Repository is a BadgerDB-backed pattern repository. Every write is
// durable as soon as the call returns, so SaveAll only emits its
// event. Queries materialize the working set from a prefix scan and
// reuse the shared domain predicate.
type Repository struct {
	cfg Config

	mu          sync.Mutex
	db          *badger.DB
	initialized bool

	emitter *pattern.Emitter
}

// NewRepository creates a repository with the given configuration.
// Initialize must be called before use.
func NewRepository(cfg Config, opts ...Option) *Repository {
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Repository{
		cfg:     cfg,
		emitter: pattern.NewEmitter(),
	}
}

// Initialize opens the database. Idempotent.
func (r *Repository) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	db, err := openDB(r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
	}
	r.db = db
	r.initialized = true
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.initialized = false
	return err
}

func (r *Repository) database() (*badger.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil, fmt.Errorf("%w: repository not initialized", pattern.ErrStorage)
	}
	return r.db, nil
}

func (r *Repository) key(id string) []byte {
	return []byte(r.cfg.KeyPrefix + "pattern:" + id)
}

func (r *Repository) keyPrefix() []byte {
	return []byte(r.cfg.KeyPrefix + "pattern:")
}

// Add inserts a new pattern.
func (r *Repository) Add(ctx context.Context, p *pattern.Pattern) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return pattern.ErrInvalidPattern
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	err = db.Update(func(txn *badger.Txn) error {
		key := r.key(p.ID)
		if _, err := txn.Get(key); err == nil {
			return &pattern.AlreadyExistsError{ID: p.ID}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
		}

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("%w: encode pattern: %v", pattern.ErrStorage, err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}

	r.emitter.Emit(pattern.Event{Type: pattern.EventAdded, Pattern: p.Clone()})
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

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	var p *pattern.Pattern
	err = db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
		}
		return item.Value(func(val []byte) error {
			p = &pattern.Pattern{}
			return json.Unmarshal(val, p)
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update merges a patch into the stored pattern.
func (r *Repository) Update(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	var updated *pattern.Pattern
	err = db.Update(func(txn *badger.Txn) error {
		current, err := readPattern(txn, r.key(id))
		if err != nil {
			return err
		}
		if current == nil {
			return &pattern.NotFoundError{ID: id}
		}

		updated = patch.Apply(current)
		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("%w: encode pattern: %v", pattern.ErrStorage, err)
		}
		return txn.Set(r.key(id), data)
	})
	if err != nil {
		return nil, err
	}

	r.emitter.Emit(pattern.Event{Type: pattern.EventUpdated, Pattern: updated.Clone()})
	return updated, nil
}

// Delete removes a pattern, reporting whether one was removed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	db, err := r.database()
	if err != nil {
		return false, err
	}

	var deleted *pattern.Pattern
	err = db.Update(func(txn *badger.Txn) error {
		current, err := readPattern(txn, r.key(id))
		if err != nil {
			return err
		}
		if current == nil {
			return nil
		}
		deleted = current
		return txn.Delete(r.key(id))
	})
	if err != nil {
		return false, err
	}
	if deleted == nil {
		return false, nil
	}

	r.emitter.Emit(pattern.Event{Type: pattern.EventDeleted, Pattern: deleted})
	return true, nil
}

// Query materializes the stored patterns and applies the shared
// filter, sort, and pagination semantics.
func (r *Repository) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	working, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return pattern.RunQuery(working, opts), nil
}

func (r *Repository) loadAll(ctx context.Context) (map[string]*pattern.Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	working := make(map[string]*pattern.Pattern)
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := r.keyPrefix()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p pattern.Pattern
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("%w: decode pattern: %v", pattern.ErrStorage, err)
				}
				working[p.ID] = &p
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return working, nil
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

	db, err := r.database()
	if err != nil {
		return nil, err
	}

	var updated *pattern.Pattern
	err = db.Update(func(txn *badger.Txn) error {
		current, err := readPattern(txn, r.key(id))
		if err != nil {
			return err
		}
		if current == nil {
			return &pattern.NotFoundError{ID: id}
		}
		if err := pattern.ValidateTransition(id, current.Status, to); err != nil {
			return err
		}

		updated = current.Clone()
		updated.Status = to
		if to == pattern.StatusApproved {
			now := time.Now().UTC()
			updated.ApprovedAt = &now
			updated.ApprovedBy = approvedBy
		}

		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("%w: encode pattern: %v", pattern.ErrStorage, err)
		}
		return txn.Set(r.key(id), data)
	})
	if err != nil {
		return nil, err
	}

	eventType := pattern.EventApproved
	if to == pattern.StatusIgnored {
		eventType = pattern.EventIgnored
	}
	r.emitter.Emit(pattern.Event{Type: eventType, Pattern: updated.Clone()})
	return updated, nil
}

// SaveAll is a no-op: every write is already durable.
func (r *Repository) SaveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count, err := r.Count(ctx, pattern.Filter{})
	if err != nil {
		return err
	}

	r.emitter.Emit(pattern.Event{Type: pattern.EventSaved, Metadata: map[string]any{"count": count}})
	return nil
}

// Clear drops every pattern key.
func (r *Repository) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	if err := db.DropPrefix(r.keyPrefix()); err != nil {
		return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
	}

	r.emitter.Emit(pattern.Event{Type: pattern.EventCleared})
	return nil
}

// Exists reports whether the ID is present.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	db, err := r.database()
	if err != nil {
		return false, err
	}

	var exists bool
	err = db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(r.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", pattern.ErrStorage, err)
		}
		exists = true
		return nil
	})
	return exists, err
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

// readPattern loads a pattern inside a transaction, or nil when the
// key is absent.
func readPattern(txn *badger.Txn, key []byte) (*pattern.Pattern, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pattern.ErrStorage, err)
	}

	var p pattern.Pattern
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decode pattern: %v", pattern.ErrStorage, err)
	}
	return &p, nil
}

// Ensure Repository implements the pattern repository contract.
var _ pattern.Repository = (*Repository)(nil)
