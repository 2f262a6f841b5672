package pattern

// Transitions defines which status transitions are allowed.
//
// Thread Safety: Transitions is NOT safe for concurrent modification.
// Configure it fully up front and treat it as immutable thereafter;
// CanTransition is safe for concurrent use after that.
type Transitions struct {
	allowed map[Status]map[Status]bool
}

// NewTransitions creates an empty transition configuration.
func NewTransitions() *Transitions {
	return &Transitions{
		allowed: make(map[Status]map[Status]bool),
	}
}

// DefaultTransitions returns the canonical pattern lifecycle:
//
//	discovered -> approved
//	discovered -> ignored
//	ignored    -> approved
//
// Approved patterns cannot be ignored, and same-state transitions are
// rejected: approving an already approved pattern is an error, not a
// no-op.
func DefaultTransitions() *Transitions {
	return NewTransitions().
		Allow(StatusDiscovered, StatusApproved).
		Allow(StatusDiscovered, StatusIgnored).
		Allow(StatusIgnored, StatusApproved)
}

// Allow permits a transition from one status to another.
func (t *Transitions) Allow(from, to Status) *Transitions {
	if t.allowed[from] == nil {
		t.allowed[from] = make(map[Status]bool)
	}
	t.allowed[from][to] = true
	return t
}

// CanTransition reports whether the transition is permitted.
func (t *Transitions) CanTransition(from, to Status) bool {
	targets, ok := t.allowed[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Validate returns an InvalidTransitionError if the transition is not
// permitted for the given pattern.
func (t *Transitions) Validate(id string, from, to Status) error {
	if !t.CanTransition(from, to) {
		return &InvalidTransitionError{ID: id, From: from, To: to}
	}
	return nil
}

// CanTransition checks a transition against the default lifecycle.
func CanTransition(from, to Status) bool {
	return defaultTransitions.CanTransition(from, to)
}

// ValidateTransition checks a transition against the default lifecycle.
func ValidateTransition(id string, from, to Status) error {
	return defaultTransitions.Validate(id, from, to)
}

var defaultTransitions = DefaultTransitions()
