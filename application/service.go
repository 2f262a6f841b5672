// Package application provides application services over the pattern
// repository.
package application

import (
	"context"
	"sync"
	"time"

	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/lifecycle"
	"github.com/driftdev/drift/infrastructure/logging"
)

// Service answers the higher-level questions tools ask of the pattern
// knowledge base: aggregate status, category summaries, listings,
// search, code examples, and bulk lifecycle transitions.
//
// The service keeps one piece of derived state of its own: a
// short-TTL cache of the aggregate status. Every mutating method
// invalidates it.
type Service struct {
	repo pattern.Repository

	projectRoot    string
	statusTTL      time.Duration
	exampleContext int

	mu            sync.Mutex
	cachedStatus  *Status
	statusExpires time.Time
}

// Option configures the service.
type Option func(*Service)

// WithProjectRoot sets the directory relative location paths resolve
// against when extracting code examples.
func WithProjectRoot(root string) Option {
	return func(s *Service) {
		s.projectRoot = root
	}
}

// WithStatusTTL sets how long the aggregate status cache lives.
func WithStatusTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.statusTTL = ttl
	}
}

// WithExampleContext sets how many surrounding lines code examples
// include around a location.
func WithExampleContext(lines int) Option {
	return func(s *Service) {
		s.exampleContext = lines
	}
}

// NewService creates a pattern service over a repository.
func NewService(repo pattern.Repository, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		statusTTL:      5 * time.Second,
		exampleContext: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository returns the underlying repository for advanced callers.
func (s *Service) Repository() pattern.Repository {
	return s.repo
}

// ListOptions controls pagination and ordering of listings.
type ListOptions struct {
	Sort   *pattern.Sort
	Offset int
	Limit  int
}

// ListPatterns returns a paginated, sortable page of all patterns.
func (s *Service) ListPatterns(ctx context.Context, opts ListOptions) (*pattern.QueryResult, error) {
	return s.repo.Query(ctx, pattern.QueryOptions{
		Sort:   opts.Sort,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	})
}

// ListByCategory returns a page of patterns in one category.
func (s *Service) ListByCategory(ctx context.Context, category pattern.Category, opts ListOptions) (*pattern.QueryResult, error) {
	return s.repo.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{category}},
		Sort:   opts.Sort,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	})
}

// ListByStatus returns a page of patterns in one lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status pattern.Status, opts ListOptions) (*pattern.QueryResult, error) {
	return s.repo.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{Statuses: []pattern.Status{status}},
		Sort:   opts.Sort,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	})
}

// GetPattern returns the pattern or (nil, nil) when absent.
func (s *Service) GetPattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	return s.repo.Get(ctx, id)
}

// SearchOptions narrows a search.
type SearchOptions struct {
	// Categories restricts the search to these categories.
	Categories []pattern.Category

	// Limit caps the number of results (0 = no limit).
	Limit int
}

// Search finds patterns whose name or description contains the term,
// case-insensitively.
func (s *Service) Search(ctx context.Context, term string, opts SearchOptions) ([]*pattern.Pattern, error) {
	result, err := s.repo.Query(ctx, pattern.QueryOptions{
		Filter: pattern.Filter{
			Text:       term,
			Categories: opts.Categories,
		},
		Limit: opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Patterns, nil
}

// Query passes an arbitrary query through to the repository.
func (s *Service) Query(ctx context.Context, opts pattern.QueryOptions) (*pattern.QueryResult, error) {
	return s.repo.Query(ctx, opts)
}

// AddPattern inserts a pattern and invalidates the status cache.
func (s *Service) AddPattern(ctx context.Context, p *pattern.Pattern) error {
	if err := s.repo.Add(ctx, p); err != nil {
		return err
	}
	s.invalidateStatus()

	logging.Debug().
		Add(logging.PatternID(p.ID)).
		Add(logging.Category(p.Category)).
		Add(logging.Status(p.Status)).
		Add(logging.Confidence(p.Confidence)).
		Msg("pattern added")
	return nil
}

// AddPatterns inserts a batch and invalidates the status cache.
// Insertion follows the repository's batch policy: best-effort per
// item, aborting at the first duplicate.
func (s *Service) AddPatterns(ctx context.Context, patterns []*pattern.Pattern) error {
	err := s.repo.AddMany(ctx, patterns)
	s.invalidateStatus()
	return err
}

// UpdatePattern patches a pattern and invalidates the status cache.
func (s *Service) UpdatePattern(ctx context.Context, id string, patch pattern.Patch) (*pattern.Pattern, error) {
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidateStatus()
	return p, nil
}

// DeletePattern removes a pattern and invalidates the status cache.
func (s *Service) DeletePattern(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.invalidateStatus()
	}
	return deleted, nil
}

// ApprovePattern transitions a pattern to approved. The transition is
// validated through the lifecycle statechart before the repository
// applies it.
func (s *Service) ApprovePattern(ctx context.Context, id, approvedBy string) (*pattern.Pattern, error) {
	from, err := s.checkTransition(ctx, id, pattern.StatusApproved, approvedBy)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Approve(ctx, id, approvedBy)
	if err != nil {
		return nil, err
	}
	s.invalidateStatus()

	logging.Debug().
		Add(logging.PatternID(id)).
		Add(logging.FromStatus(from)).
		Add(logging.ToStatus(pattern.StatusApproved)).
		Add(logging.Approver(approvedBy)).
		Msg("pattern approved")
	return p, nil
}

// IgnorePattern transitions a pattern to ignored.
func (s *Service) IgnorePattern(ctx context.Context, id string) (*pattern.Pattern, error) {
	from, err := s.checkTransition(ctx, id, pattern.StatusIgnored, "")
	if err != nil {
		return nil, err
	}

	p, err := s.repo.Ignore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateStatus()

	logging.Debug().
		Add(logging.PatternID(id)).
		Add(logging.FromStatus(from)).
		Add(logging.ToStatus(pattern.StatusIgnored)).
		Msg("pattern ignored")
	return p, nil
}

// checkTransition validates a lifecycle move against the statechart
// using a throwaway copy of the stored pattern. Returns the status the
// pattern held before the move.
func (s *Service) checkTransition(ctx context.Context, id string, to pattern.Status, approvedBy string) (pattern.Status, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", &pattern.NotFoundError{ID: id}
	}

	interp, err := lifecycle.NewInterpreter(p)
	if err != nil {
		return "", err
	}
	interp.Start()
	defer interp.Stop()

	from := p.Status
	if err := interp.Transition(to, approvedBy); err != nil {
		logging.Warn().
			Add(logging.PatternID(id)).
			Add(logging.FromStatus(from)).
			Add(logging.ToStatus(to)).
			Add(logging.ErrorField(err)).
			Msg("pattern transition rejected")
		return "", err
	}
	return from, nil
}

// BatchResult reports the outcome of one ID in a bulk transition.
type BatchResult struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// ApproveMany approves a batch of patterns. The operation is
// best-effort: every ID is attempted, and each failure is reported in
// its result entry rather than aborting the rest.
func (s *Service) ApproveMany(ctx context.Context, ids []string, approvedBy string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		_, err := s.ApprovePattern(ctx, id, approvedBy)
		results = append(results, BatchResult{ID: id, Err: err})
	}
	return results
}

// IgnoreMany ignores a batch of patterns, best-effort like
// ApproveMany.
func (s *Service) IgnoreMany(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		_, err := s.IgnorePattern(ctx, id)
		results = append(results, BatchResult{ID: id, Err: err})
	}
	return results
}

// Save flushes the repository to durable storage.
func (s *Service) Save(ctx context.Context) error {
	start := time.Now()
	if err := s.repo.SaveAll(ctx); err != nil {
		return err
	}

	logging.Debug().
		Add(logging.Duration(time.Since(start))).
		Msg("repository flushed")
	return nil
}

// Clear empties the repository and invalidates the status cache.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.invalidateStatus()
	return nil
}
