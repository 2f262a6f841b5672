package lifecycle

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/driftdev/drift/domain/pattern"
)

// Interpreter drives the lifecycle statechart for one pattern.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates an interpreter seeded at the pattern's
// current status.
func NewInterpreter(p *pattern.Pattern) (*Interpreter, error) {
	machine, err := NewMachine(p.Status)
	if err != nil {
		return nil, err
	}

	ctx := NewContext(p)
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})

	return &Interpreter{interp: interp, ctx: ctx}, nil
}

// Start enters the initial state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// Status returns the current lifecycle state.
func (i *Interpreter) Status() pattern.Status {
	return pattern.Status(i.interp.State().Value)
}

// CanTransition checks a transition against the lifecycle table.
func (i *Interpreter) CanTransition(to pattern.Status) bool {
	return i.ctx.Transitions.CanTransition(i.ctx.Pattern.Status, to)
}

// Transition moves the pattern to the target status, returning the
// typed transition error when the table rejects the move.
func (i *Interpreter) Transition(to pattern.Status, approvedBy string) error {
	if !i.CanTransition(to) {
		return &pattern.InvalidTransitionError{
			ID:   i.ctx.Pattern.ID,
			From: i.ctx.Pattern.Status,
			To:   to,
		}
	}

	i.interp.Send(statekit.Event{
		Type: EventForStatus(to),
		Payload: TransitionPayload{
			ToStatus:   to,
			ApprovedBy: approvedBy,
		},
	})
	return nil
}

// Done reports whether the lifecycle reached its final state.
func (i *Interpreter) Done() bool {
	return i.interp.Done()
}
