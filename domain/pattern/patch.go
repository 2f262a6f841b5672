package pattern

import "time"

// Patch is a partial update to a pattern. Nil fields are left
// untouched. Status is deliberately absent: lifecycle changes go
// through Approve and Ignore so the transition table applies.
type Patch struct {
	Subcategory *string
	Name        *string
	Description *string

	// Confidence, when set, also re-derives ConfidenceLevel. The level
	// cannot be patched independently.
	Confidence *float64

	Locations   []Location
	Outliers    []Location
	Severity    *Severity
	Tags        []string
	AutoFixable *bool
	Metadata    map[string]any

	// LastSeen, when set, records the re-scan time.
	LastSeen *time.Time
}

// IsZero reports whether the patch changes nothing.
func (pt Patch) IsZero() bool {
	return pt.Subcategory == nil &&
		pt.Name == nil &&
		pt.Description == nil &&
		pt.Confidence == nil &&
		pt.Locations == nil &&
		pt.Outliers == nil &&
		pt.Severity == nil &&
		pt.Tags == nil &&
		pt.AutoFixable == nil &&
		pt.Metadata == nil &&
		pt.LastSeen == nil
}

// Apply merges the patch into a copy of the pattern and returns it.
// The receiver is not mutated.
func (pt Patch) Apply(p *Pattern) *Pattern {
	out := p.Clone()

	if pt.Subcategory != nil {
		out.Subcategory = *pt.Subcategory
	}
	if pt.Name != nil {
		out.Name = *pt.Name
	}
	if pt.Description != nil {
		out.Description = *pt.Description
	}
	if pt.Confidence != nil {
		out.Confidence = *pt.Confidence
		out.ConfidenceLevel = LevelForConfidence(*pt.Confidence)
	}
	if pt.Locations != nil {
		out.Locations = append([]Location(nil), pt.Locations...)
	}
	if pt.Outliers != nil {
		out.Outliers = append([]Location(nil), pt.Outliers...)
	}
	if pt.Severity != nil {
		out.Severity = *pt.Severity
	}
	if pt.Tags != nil {
		out.Tags = append([]string(nil), pt.Tags...)
	}
	if pt.Metadata != nil {
		out.Metadata = make(map[string]any, len(pt.Metadata))
		for k, v := range pt.Metadata {
			out.Metadata[k] = v
		}
	}
	if pt.AutoFixable != nil {
		out.AutoFixable = *pt.AutoFixable
	}
	if pt.LastSeen != nil {
		out.LastSeen = *pt.LastSeen
	}

	return out
}
