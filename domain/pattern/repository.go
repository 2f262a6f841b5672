package pattern

import "context"

// Repository is the storage contract every pattern backend satisfies.
// Backends differ in persistence (in-memory, per-category JSON shards,
// embedded KV) but must answer every operation identically; the shared
// Filter predicate and sort helpers in this package enforce that for
// queries.
//
// Get never fails for a missing pattern: it returns (nil, nil).
// Update, Approve, and Ignore return NotFoundError for a missing ID,
// and Approve/Ignore return InvalidTransitionError for transitions the
// lifecycle table rejects.
type Repository interface {
	// Initialize prepares storage and loads existing data. It is
	// idempotent; a second call is a no-op.
	Initialize(ctx context.Context) error

	// Close releases resources, flushing pending state where the
	// backend buffers writes.
	Close() error

	// Add inserts a new pattern. Fails with AlreadyExistsError when
	// the ID is present. Emits pattern:added.
	Add(ctx context.Context, p *Pattern) error

	// AddMany inserts a batch. Insertion is best-effort per item: the
	// first duplicate aborts the batch and already inserted patterns
	// remain. One pattern:added event fires per inserted item.
	AddMany(ctx context.Context, patterns []*Pattern) error

	// Get returns the pattern or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Pattern, error)

	// Update merges a partial patch into the stored pattern and
	// returns the result. ConfidenceLevel is re-derived whenever the
	// patch sets Confidence. Emits pattern:updated.
	Update(ctx context.Context, id string, patch Patch) (*Pattern, error)

	// Delete removes a pattern, reporting whether one was removed.
	// Missing IDs are not an error. Emits pattern:deleted on removal.
	Delete(ctx context.Context, id string) (bool, error)

	// Query applies conjunctive filtering, sorting, and pagination.
	Query(ctx context.Context, opts QueryOptions) (*QueryResult, error)

	// Convenience accessors, all consistent with Query.
	GetAll(ctx context.Context) ([]*Pattern, error)
	GetByCategory(ctx context.Context, category Category) ([]*Pattern, error)
	GetByStatus(ctx context.Context, status Status) ([]*Pattern, error)
	GetByFile(ctx context.Context, file string) ([]*Pattern, error)
	Count(ctx context.Context, filter Filter) (int, error)

	// Approve transitions the pattern to approved, recording who
	// approved it. Emits pattern:approved.
	Approve(ctx context.Context, id, approvedBy string) (*Pattern, error)

	// Ignore transitions the pattern to ignored. Emits pattern:ignored.
	Ignore(ctx context.Context, id string) (*Pattern, error)

	// SaveAll flushes the in-memory working set to durable storage.
	// Safe to call repeatedly; a no-op for non-durable backends.
	// Emits patterns:saved.
	SaveAll(ctx context.Context) error

	// Clear empties the repository, durable state included.
	// Emits patterns:cleared.
	Clear(ctx context.Context) error

	// Exists reports whether the ID is present.
	Exists(ctx context.Context, id string) (bool, error)

	// Summaries returns lightweight projections for listing UIs.
	// A nil opts means all patterns.
	Summaries(ctx context.Context, opts *QueryOptions) ([]Summary, error)

	// Events exposes the repository's event emitter.
	Events() *Emitter
}
