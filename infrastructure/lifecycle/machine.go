// Package lifecycle provides the statekit statechart for the pattern
// status lifecycle.
package lifecycle

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/driftdev/drift/domain/pattern"
)

// Context carries the pattern being transitioned through the machine.
type Context struct {
	Pattern     *pattern.Pattern
	Transitions *pattern.Transitions
}

// NewContext creates a machine context for a pattern.
func NewContext(p *pattern.Pattern) *Context {
	return &Context{
		Pattern:     p,
		Transitions: pattern.DefaultTransitions(),
	}
}

// TransitionPayload carries the target status with a transition event.
type TransitionPayload struct {
	ToStatus   pattern.Status
	ApprovedBy string
}

// State IDs as StateID type for statekit.
const (
	stateDiscovered statekit.StateID = statekit.StateID(pattern.StatusDiscovered)
	stateApproved   statekit.StateID = statekit.StateID(pattern.StatusApproved)
	stateIgnored    statekit.StateID = statekit.StateID(pattern.StatusIgnored)
)

// Event types driving the lifecycle.
const (
	EventApprove statekit.EventType = "APPROVE"
	EventIgnore  statekit.EventType = "IGNORE"
)

// NewMachine creates the pattern lifecycle statechart, entered at the
// given status. Approved is terminal: once a pattern is locked in as a
// convention, the table offers no way out of it.
func NewMachine(initial pattern.Status) (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("pattern-lifecycle").
		WithInitial(statekit.StateID(initial)).
		WithContext(&Context{}).
		WithGuard("canTransition", guardCanTransition).
		WithAction("applyTransition", applyTransition).
		State(stateDiscovered).
		On(EventApprove).Target(stateApproved).Guard("canTransition").Do("applyTransition").
		On(EventIgnore).Target(stateIgnored).Guard("canTransition").Do("applyTransition").
		Done().
		State(stateIgnored).
		On(EventApprove).Target(stateApproved).Guard("canTransition").Do("applyTransition").
		Done().
		State(stateApproved).
		Final().
		Done().
		Build()
}

// guardCanTransition checks the transition against the lifecycle
// table. Guards receive the context by value; ours is *Context.
func guardCanTransition(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Pattern == nil || ctx.Transitions == nil {
		return false
	}

	return ctx.Transitions.CanTransition(ctx.Pattern.Status, statusFromEvent(event))
}

// applyTransition writes the new status onto the pattern. Actions
// receive a pointer to the context; ours is *Context, so **Context.
func applyTransition(ctx **Context, event statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Pattern == nil {
		return
	}

	c := *ctx
	to := statusFromEvent(event)
	if to == "" {
		return
	}

	c.Pattern.Status = to
	if to == pattern.StatusApproved {
		if payload, ok := event.Payload.(TransitionPayload); ok {
			c.Pattern.ApprovedBy = payload.ApprovedBy
		}
	}
}

// EventForStatus returns the event type that targets a status.
func EventForStatus(to pattern.Status) statekit.EventType {
	switch to {
	case pattern.StatusApproved:
		return EventApprove
	case pattern.StatusIgnored:
		return EventIgnore
	default:
		return statekit.EventType(to)
	}
}

// statusFromEvent derives the target status from a transition event.
func statusFromEvent(event statekit.Event) pattern.Status {
	if payload, ok := event.Payload.(TransitionPayload); ok && payload.ToStatus != "" {
		return payload.ToStatus
	}
	switch event.Type {
	case EventApprove:
		return pattern.StatusApproved
	case EventIgnore:
		return pattern.StatusIgnored
	default:
		return pattern.Status(event.Type)
	}
}
