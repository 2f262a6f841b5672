package pattern

import (
	"sort"
	"strings"
	"time"
)

// Filter narrows a pattern query. All set fields must match (AND).
type Filter struct {
	// IDs restricts results to this ID set.
	IDs []string

	// Categories restricts results to these categories.
	Categories []Category

	// Statuses restricts results to these lifecycle states.
	Statuses []Status

	// MinConfidence and MaxConfidence bound the confidence score.
	// A nil bound is open.
	MinConfidence *float64
	MaxConfidence *float64

	// ConfidenceLevels restricts results to these derived levels.
	ConfidenceLevels []ConfidenceLevel

	// Severities restricts results to these severities.
	Severities []Severity

	// Files matches patterns with at least one location in any of the
	// given files.
	Files []string

	// HasOutliers, when set, matches only patterns with (or without)
	// recorded outliers.
	HasOutliers *bool

	// Tags matches patterns carrying at least one of the given tags.
	Tags []string

	// Text is a case-insensitive substring match over name and
	// description.
	Text string

	// CreatedAfter and CreatedBefore bound FirstSeen.
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// SortField selects the ordering of query results.
type SortField string

const (
	SortByName          SortField = "name"
	SortByConfidence    SortField = "confidence"
	SortBySeverity      SortField = "severity"
	SortByFirstSeen     SortField = "firstSeen"
	SortByLastSeen      SortField = "lastSeen"
	SortByLocationCount SortField = "locationCount"
)

// Sort specifies a single-field ordering.
type Sort struct {
	Field      SortField
	Descending bool
}

// QueryOptions combines filtering, sorting, and pagination.
type QueryOptions struct {
	Filter Filter
	Sort   *Sort

	// Offset is the number of matching patterns to skip.
	Offset int

	// Limit is the maximum number of patterns to return (0 = no limit).
	Limit int
}

// QueryResult is a page of matching patterns.
type QueryResult struct {
	// Patterns is the page of results.
	Patterns []*Pattern

	// Total is the number of matches before pagination.
	Total int

	// HasMore reports whether results exist past this page.
	HasMore bool
}

// Matches reports whether the pattern satisfies every set predicate.
// All backends answer queries through this single predicate so their
// filter semantics cannot drift apart.
func (f Filter) Matches(p *Pattern) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, p.ID) {
		return false
	}

	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if p.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if p.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.MinConfidence != nil && p.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && p.Confidence > *f.MaxConfidence {
		return false
	}

	if len(f.ConfidenceLevels) > 0 {
		found := false
		for _, l := range f.ConfidenceLevels {
			if p.ConfidenceLevel == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Severities) > 0 {
		found := false
		for _, s := range f.Severities {
			if p.Severity == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.Files) > 0 {
		found := false
		for _, file := range f.Files {
			if p.InFile(file) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.HasOutliers != nil && (len(p.Outliers) > 0) != *f.HasOutliers {
		return false
	}

	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if p.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}

	if f.CreatedAfter != nil && p.FirstSeen.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && p.FirstSeen.After(*f.CreatedBefore) {
		return false
	}

	return true
}

// SortPatterns orders patterns in place by the given sort. A nil sort
// falls back to name ascending so pagination is deterministic.
func SortPatterns(patterns []*Pattern, s *Sort) {
	field := SortByName
	descending := false
	if s != nil {
		field = s.Field
		descending = s.Descending
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		var less bool
		switch field {
		case SortByConfidence:
			less = patterns[i].Confidence < patterns[j].Confidence
		case SortBySeverity:
			less = severityRank(patterns[i].Severity) < severityRank(patterns[j].Severity)
		case SortByFirstSeen:
			less = patterns[i].FirstSeen.Before(patterns[j].FirstSeen)
		case SortByLastSeen:
			less = patterns[i].LastSeen.Before(patterns[j].LastSeen)
		case SortByLocationCount:
			less = len(patterns[i].Locations) < len(patterns[j].Locations)
		default:
			less = patterns[i].Name < patterns[j].Name
		}

		if descending {
			return !less
		}
		return less
	})
}

// RunQuery applies filter, sort, and pagination over an already loaded
// working set. Backends clone matches before handing them out.
func RunQuery(patterns map[string]*Pattern, opts QueryOptions) *QueryResult {
	var matches []*Pattern
	for _, p := range patterns {
		if opts.Filter.Matches(p) {
			matches = append(matches, p.Clone())
		}
	}

	SortPatterns(matches, opts.Sort)

	total := len(matches)

	if opts.Offset > 0 {
		if opts.Offset >= len(matches) {
			matches = nil
		} else {
			matches = matches[opts.Offset:]
		}
	}

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	return &QueryResult{
		Patterns: matches,
		Total:    total,
		HasMore:  offset+len(matches) < total,
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
