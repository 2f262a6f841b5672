package pattern

// Category classifies a pattern by the concern it captures.
type Category string

const (
	CategoryAPI           Category = "api"
	CategoryAuth          Category = "auth"
	CategorySecurity      Category = "security"
	CategoryErrors        Category = "errors"
	CategoryDataAccess    Category = "data-access"
	CategoryTesting       Category = "testing"
	CategoryLogging       Category = "logging"
	CategoryConfig        Category = "config"
	CategoryTypes         Category = "types"
	CategoryPerformance   Category = "performance"
	CategoryAccessibility Category = "accessibility"
	CategoryDocumentation Category = "documentation"
	CategoryStructural    Category = "structural"
	CategoryComponents    Category = "components"
	CategoryStyling       Category = "styling"
)

// Categories lists all known categories in display order.
func Categories() []Category {
	return []Category{
		CategoryAPI,
		CategoryAuth,
		CategorySecurity,
		CategoryErrors,
		CategoryDataAccess,
		CategoryTesting,
		CategoryLogging,
		CategoryConfig,
		CategoryTypes,
		CategoryPerformance,
		CategoryAccessibility,
		CategoryDocumentation,
		CategoryStructural,
		CategoryComponents,
		CategoryStyling,
	}
}

// IsValid reports whether the category is one of the known values.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a pattern.
type Status string

const (
	// StatusDiscovered is the initial state for every new pattern.
	StatusDiscovered Status = "discovered"

	// StatusApproved marks a pattern as an accepted team convention.
	StatusApproved Status = "approved"

	// StatusIgnored marks a pattern as noise or not worth enforcing.
	StatusIgnored Status = "ignored"
)

// Statuses lists all lifecycle states.
func Statuses() []Status {
	return []Status{StatusDiscovered, StatusApproved, StatusIgnored}
}

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusDiscovered, StatusApproved, StatusIgnored:
		return true
	}
	return false
}

// ConfidenceLevel is the coarse bucket derived from a numeric confidence.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Confidence thresholds separating the levels.
const (
	mediumConfidenceThreshold = 0.5
	highConfidenceThreshold   = 0.8
)

// LevelForConfidence derives the confidence level for a score.
// The thresholds are fixed: below 0.5 is low, below 0.8 is medium,
// everything else is high.
func LevelForConfidence(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= highConfidenceThreshold:
		return ConfidenceHigh
	case confidence >= mediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Severity indicates how serious a violation of the pattern is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// severityRank gives severities a total order for sorting.
func severityRank(s Severity) int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// DetectionMethod describes how a detector found a pattern.
type DetectionMethod string

const (
	MethodAST       DetectionMethod = "ast"
	MethodSemantic  DetectionMethod = "semantic"
	MethodHeuristic DetectionMethod = "heuristic"
)
