package pattern

import (
	"errors"
	"testing"
	"time"
)

// Pattern Creation Tests

func TestNew_CreatesDiscoveredPattern(t *testing.T) {
	p := New(CreateInput{
		Category:    CategoryAPI,
		Name:        "versioned routes",
		Description: "all routes carry a /v1 prefix",
		Confidence:  0.9,
		Locations:   []Location{{File: "src/routes.ts", Line: 12, Column: 1}},
	})

	if p.ID == "" {
		t.Error("expected non-empty ID")
	}
	if p.Status != StatusDiscovered {
		t.Errorf("expected status %s, got %s", StatusDiscovered, p.Status)
	}
	if p.ConfidenceLevel != ConfidenceHigh {
		t.Errorf("expected confidence level high, got %s", p.ConfidenceLevel)
	}
	if p.FirstSeen.IsZero() || p.LastSeen.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if p.FirstSeen != p.LastSeen {
		t.Error("expected FirstSeen and LastSeen to be equal for new pattern")
	}
	if p.Severity != SeverityInfo {
		t.Errorf("expected default severity info, got %s", p.Severity)
	}
	if p.ApprovedAt != nil || p.ApprovedBy != "" {
		t.Error("expected no approval data on creation")
	}
}

func TestNew_DerivesStableID(t *testing.T) {
	a := New(CreateInput{Category: CategoryAPI, Name: "versioned routes"})
	b := New(CreateInput{Category: CategoryAPI, Name: "versioned routes"})
	c := New(CreateInput{Category: CategorySecurity, Name: "versioned routes"})

	if a.ID != b.ID {
		t.Errorf("expected identical IDs for identical input, got %s and %s", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Error("expected different IDs for different categories")
	}
}

func TestNew_KeepsCallerID(t *testing.T) {
	p := New(CreateInput{ID: "custom-id", Category: CategoryAPI, Name: "x"})
	if p.ID != "custom-id" {
		t.Errorf("expected custom-id, got %s", p.ID)
	}
}

// Confidence Level Tests

func TestLevelForConfidence(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceLevel
	}{
		{0.0, ConfidenceLow},
		{0.49, ConfidenceLow},
		{0.5, ConfidenceMedium},
		{0.79, ConfidenceMedium},
		{0.8, ConfidenceHigh},
		{1.0, ConfidenceHigh},
	}

	for _, tt := range tests {
		if got := LevelForConfidence(tt.confidence); got != tt.want {
			t.Errorf("LevelForConfidence(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

// Transition Table Tests

func TestDefaultTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusDiscovered, StatusApproved, true},
		{StatusDiscovered, StatusIgnored, true},
		{StatusIgnored, StatusApproved, true},
		{StatusApproved, StatusIgnored, false},
		{StatusApproved, StatusApproved, false},
		{StatusDiscovered, StatusDiscovered, false},
		{StatusIgnored, StatusIgnored, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestValidateTransition_ReturnsTypedError(t *testing.T) {
	err := ValidateTransition("p1", StatusApproved, StatusIgnored)
	if err == nil {
		t.Fatal("expected error for approved -> ignored")
	}

	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}
	if transErr.ID != "p1" || transErr.From != StatusApproved || transErr.To != StatusIgnored {
		t.Errorf("unexpected error fields: %+v", transErr)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected errors.Is to match ErrInvalidTransition")
	}
}

// Error Taxonomy Tests

func TestErrorSentinels(t *testing.T) {
	if !errors.Is(&NotFoundError{ID: "x"}, ErrPatternNotFound) {
		t.Error("NotFoundError should match ErrPatternNotFound")
	}
	if !errors.Is(&AlreadyExistsError{ID: "x"}, ErrPatternExists) {
		t.Error("AlreadyExistsError should match ErrPatternExists")
	}
}

// Patch Tests

func TestPatch_Apply(t *testing.T) {
	p := New(CreateInput{Category: CategoryAPI, Name: "original", Confidence: 0.9})

	name := "renamed"
	confidence := 0.3
	patched := Patch{Name: &name, Confidence: &confidence}.Apply(p)

	if patched.Name != "renamed" {
		t.Errorf("expected renamed, got %s", patched.Name)
	}
	if patched.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %v", patched.Confidence)
	}
	if patched.ConfidenceLevel != ConfidenceLow {
		t.Errorf("expected level re-derived to low, got %s", patched.ConfidenceLevel)
	}

	// Original untouched
	if p.Name != "original" || p.ConfidenceLevel != ConfidenceHigh {
		t.Error("Apply must not mutate the original pattern")
	}
}

func TestPatch_Apply_CopiesMetadata(t *testing.T) {
	p := New(CreateInput{Category: CategoryAPI, Name: "original", Confidence: 0.9})

	meta := map[string]any{"detector": "ast"}
	patched := Patch{Metadata: meta}.Apply(p)

	// Mutating the caller's map after Apply must not reach the patched
	// pattern.
	meta["detector"] = "heuristic"

	if patched.Metadata["detector"] != "ast" {
		t.Errorf("metadata = %v, want the value at patch time", patched.Metadata)
	}
}

func TestPatch_IsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Error("empty patch should be zero")
	}
	name := "x"
	if (Patch{Name: &name}).IsZero() {
		t.Error("patch with a field should not be zero")
	}
}

// Filter Tests

func testPattern(id string, category Category, status Status, confidence float64) *Pattern {
	p := New(CreateInput{
		ID:         id,
		Category:   category,
		Name:       "pattern " + id,
		Confidence: confidence,
		Locations:  []Location{{File: "src/" + id + ".go", Line: 1, Column: 1}},
	})
	p.Status = status
	return p
}

func TestFilter_Matches(t *testing.T) {
	p := testPattern("p1", CategoryAPI, StatusApproved, 0.9)
	p.Tags = []string{"http", "rest"}
	p.Outliers = []Location{{File: "src/odd.go", Line: 3, Column: 1}}

	hasOutliers := true
	noOutliers := false
	minHigh := 0.95

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"matching category", Filter{Categories: []Category{CategoryAPI}}, true},
		{"wrong category", Filter{Categories: []Category{CategorySecurity}}, false},
		{"matching status", Filter{Statuses: []Status{StatusApproved}}, true},
		{"wrong status", Filter{Statuses: []Status{StatusIgnored}}, false},
		{"category and status intersect", Filter{Categories: []Category{CategoryAPI}, Statuses: []Status{StatusIgnored}}, false},
		{"id membership", Filter{IDs: []string{"p1", "p2"}}, true},
		{"confidence floor excludes", Filter{MinConfidence: &minHigh}, false},
		{"confidence level", Filter{ConfidenceLevels: []ConfidenceLevel{ConfidenceHigh}}, true},
		{"file membership", Filter{Files: []string{"src/p1.go"}}, true},
		{"file miss", Filter{Files: []string{"src/other.go"}}, false},
		{"has outliers", Filter{HasOutliers: &hasOutliers}, true},
		{"no outliers excludes", Filter{HasOutliers: &noOutliers}, false},
		{"tag intersection", Filter{Tags: []string{"rest", "grpc"}}, true},
		{"tag miss", Filter{Tags: []string{"grpc"}}, false},
		{"text search case-insensitive", Filter{Text: "PATTERN P1"}, true},
		{"text miss", Filter{Text: "nothing here"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(p); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_CreatedRange(t *testing.T) {
	p := testPattern("p1", CategoryAPI, StatusDiscovered, 0.5)
	p.FirstSeen = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	if !(Filter{CreatedAfter: &before, CreatedBefore: &after}).Matches(p) {
		t.Error("expected match inside range")
	}
	if (Filter{CreatedBefore: &before}).Matches(p) {
		t.Error("expected no match before range")
	}
	if (Filter{CreatedAfter: &after}).Matches(p) {
		t.Error("expected no match after range")
	}
}

// Query Helper Tests

func TestRunQuery_Pagination(t *testing.T) {
	working := map[string]*Pattern{}
	for _, id := range []string{"a", "b", "c", "d"} {
		working[id] = testPattern(id, CategoryAPI, StatusDiscovered, 0.5)
	}

	result := RunQuery(working, QueryOptions{Offset: 1, Limit: 2})

	if len(result.Patterns) != 2 {
		t.Errorf("expected 2 patterns, got %d", len(result.Patterns))
	}
	if result.Total != 4 {
		t.Errorf("expected total 4, got %d", result.Total)
	}
	if !result.HasMore {
		t.Error("expected HasMore")
	}

	// Default sort is name ascending, so the page is stable.
	if result.Patterns[0].ID != "b" || result.Patterns[1].ID != "c" {
		t.Errorf("unexpected page: %s, %s", result.Patterns[0].ID, result.Patterns[1].ID)
	}
}

func TestRunQuery_OffsetPastEnd(t *testing.T) {
	working := map[string]*Pattern{
		"a": testPattern("a", CategoryAPI, StatusDiscovered, 0.5),
	}

	result := RunQuery(working, QueryOptions{Offset: 5})
	if len(result.Patterns) != 0 {
		t.Errorf("expected empty page, got %d", len(result.Patterns))
	}
	if result.Total != 1 {
		t.Errorf("expected total 1, got %d", result.Total)
	}
	if result.HasMore {
		t.Error("expected HasMore false for page past the end")
	}
}

func TestSortPatterns_Severity(t *testing.T) {
	a := testPattern("a", CategoryAPI, StatusDiscovered, 0.5)
	a.Severity = SeverityError
	b := testPattern("b", CategoryAPI, StatusDiscovered, 0.5)
	b.Severity = SeverityInfo
	c := testPattern("c", CategoryAPI, StatusDiscovered, 0.5)
	c.Severity = SeverityWarning

	patterns := []*Pattern{a, b, c}
	SortPatterns(patterns, &Sort{Field: SortBySeverity})

	got := []Severity{patterns[0].Severity, patterns[1].Severity, patterns[2].Severity}
	want := []Severity{SeverityInfo, SeverityWarning, SeverityError}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("severity order = %v, want %v", got, want)
		}
	}

	SortPatterns(patterns, &Sort{Field: SortBySeverity, Descending: true})
	if patterns[0].Severity != SeverityError {
		t.Errorf("expected error first when descending, got %s", patterns[0].Severity)
	}
}

// Emitter Tests

func TestEmitter_SynchronousOrderedDelivery(t *testing.T) {
	emitter := NewEmitter()

	var order []int
	emitter.Subscribe(EventAdded, func(Event) { order = append(order, 1) })
	emitter.Subscribe(EventAdded, func(Event) { order = append(order, 2) })

	emitter.Emit(Event{Type: EventAdded})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("expected ordered delivery [1 2], got %v", order)
	}
}

func TestEmitter_Unsubscribe(t *testing.T) {
	emitter := NewEmitter()

	var calls int
	sub := emitter.Subscribe(EventDeleted, func(Event) { calls++ })

	emitter.Emit(Event{Type: EventDeleted})
	emitter.Unsubscribe(sub)
	emitter.Emit(Event{Type: EventDeleted})

	if calls != 1 {
		t.Errorf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestEmitter_TypeIsolation(t *testing.T) {
	emitter := NewEmitter()

	var calls int
	emitter.Subscribe(EventAdded, func(Event) { calls++ })

	emitter.Emit(Event{Type: EventDeleted})
	if calls != 0 {
		t.Errorf("expected no delivery for other event types, got %d", calls)
	}
}

// Summary Tests

func TestSummarize(t *testing.T) {
	p := testPattern("p1", CategoryTesting, StatusDiscovered, 0.7)
	p.Outliers = []Location{{File: "a.go", Line: 1, Column: 1}}

	s := p.Summarize()
	if s.ID != "p1" || s.Category != CategoryTesting || s.LocationCount != 1 || s.OutlierCount != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if s.ConfidenceLevel != ConfidenceMedium {
		t.Errorf("expected medium, got %s", s.ConfidenceLevel)
	}
}
