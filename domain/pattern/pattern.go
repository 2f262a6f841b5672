// Package pattern provides the pattern knowledge data model and the
// repository contract its storage backends implement.
package pattern

import (
	"time"

	"github.com/google/uuid"
)

// idNamespace is the UUIDv5 namespace for deterministically derived
// pattern IDs. Stable IDs let a re-scan update a pattern instead of
// duplicating it.
var idNamespace = uuid.MustParse("9d9aa0ee-6c51-44f0-a3e4-3a6bfb53d502")

// Location is a place in the scanned codebase where a pattern (or a
// deviation from it) was observed.
type Location struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	EndLine int    `json:"endLine,omitempty"`
}

// Detector describes the detector that produced a pattern.
type Detector struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Config  map[string]any `json:"config,omitempty"`
}

// Pattern is a detected recurring code convention, stored with
// provenance, confidence, and every location it was observed at.
type Pattern struct {
	// ID is unique within a repository and stable across re-scans.
	ID string `json:"id"`

	// Category places the pattern in the closed category set.
	Category Category `json:"category"`

	// Subcategory scopes the pattern within its category.
	Subcategory string `json:"subcategory,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description"`

	// Status is the lifecycle state. Only status transitions permitted
	// by the transition table may change it.
	Status Status `json:"status"`

	// Detector provenance. Always present.
	DetectorID      string          `json:"detectorId"`
	DetectorName    string          `json:"detectorName"`
	DetectionMethod DetectionMethod `json:"detectionMethod"`
	Detector        Detector        `json:"detector"`

	// Confidence is the detector's certainty (0.0-1.0).
	// ConfidenceLevel is derived from it and never set independently.
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`

	// Locations are every place the pattern was observed, in discovery
	// order. Outliers are places that deviate from the pattern.
	Locations []Location `json:"locations"`
	Outliers  []Location `json:"outliers,omitempty"`

	// Severity is how serious a violation of this pattern is.
	Severity Severity `json:"severity"`

	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`

	// ApprovedAt and ApprovedBy are set on entering the approved state.
	// They persist as history if the pattern is later re-transitioned.
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy string     `json:"approvedBy,omitempty"`

	// Tags are free-form labels; membership matters, order does not.
	Tags []string `json:"tags,omitempty"`

	// AutoFixable hints that tooling can rewrite violations.
	AutoFixable bool `json:"autoFixable"`

	// Metadata carries detector-specific extension data.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateInput is what detectors supply when registering a pattern.
// Server-assigned fields (status, timestamps, confidence level) are
// filled in by New.
type CreateInput struct {
	ID              string
	Category        Category
	Subcategory     string
	Name            string
	Description     string
	DetectorID      string
	DetectorName    string
	DetectionMethod DetectionMethod
	Detector        Detector
	Confidence      float64
	Locations       []Location
	Outliers        []Location
	Severity        Severity
	Tags            []string
	AutoFixable     bool
	Metadata        map[string]any
}

// New creates a pattern from detector input. The status is always
// discovered; callers cannot set it at creation. A missing ID is
// derived deterministically from category and name so repeated scans
// produce the same identifier.
func New(in CreateInput) *Pattern {
	now := time.Now().UTC()

	id := in.ID
	if id == "" {
		id = DeriveID(in.Category, in.Name)
	}

	severity := in.Severity
	if severity == "" {
		severity = SeverityInfo
	}

	method := in.DetectionMethod
	if method == "" {
		method = MethodAST
	}

	return &Pattern{
		ID:              id,
		Category:        in.Category,
		Subcategory:     in.Subcategory,
		Name:            in.Name,
		Description:     in.Description,
		Status:          StatusDiscovered,
		DetectorID:      in.DetectorID,
		DetectorName:    in.DetectorName,
		DetectionMethod: method,
		Detector:        in.Detector,
		Confidence:      in.Confidence,
		ConfidenceLevel: LevelForConfidence(in.Confidence),
		Locations:       append([]Location(nil), in.Locations...),
		Outliers:        append([]Location(nil), in.Outliers...),
		Severity:        severity,
		FirstSeen:       now,
		LastSeen:        now,
		Tags:            append([]string(nil), in.Tags...),
		AutoFixable:     in.AutoFixable,
		Metadata:        in.Metadata,
	}
}

// DeriveID produces the stable identifier for a category and signature.
func DeriveID(category Category, signature string) string {
	return uuid.NewSHA1(idNamespace, []byte(string(category)+"/"+signature)).String()
}

// Clone returns a deep enough copy for safe hand-out across the
// repository boundary. Slices are copied; metadata maps are shared by
// reference only at the top level.
func (p *Pattern) Clone() *Pattern {
	c := *p
	c.Locations = append([]Location(nil), p.Locations...)
	c.Outliers = append([]Location(nil), p.Outliers...)
	c.Tags = append([]string(nil), p.Tags...)
	if p.Metadata != nil {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		c.ApprovedAt = &t
	}
	return &c
}

// HasTag reports whether the pattern carries the tag.
func (p *Pattern) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// InFile reports whether any location of the pattern is in the file.
func (p *Pattern) InFile(file string) bool {
	for _, loc := range p.Locations {
		if loc.File == file {
			return true
		}
	}
	return false
}

// Summary is a lightweight projection of a pattern for listing UIs.
// It carries no location payloads, only the count.
type Summary struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        Category        `json:"category"`
	Subcategory     string          `json:"subcategory,omitempty"`
	Status          Status          `json:"status"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`
	Severity        Severity        `json:"severity"`
	LocationCount   int             `json:"locationCount"`
	OutlierCount    int             `json:"outlierCount"`
}

// Summarize projects a pattern into its summary form.
func (p *Pattern) Summarize() Summary {
	return Summary{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		Subcategory:     p.Subcategory,
		Status:          p.Status,
		Confidence:      p.Confidence,
		ConfidenceLevel: p.ConfidenceLevel,
		Severity:        p.Severity,
		LocationCount:   len(p.Locations),
		OutlierCount:    len(p.Outliers),
	}
}
