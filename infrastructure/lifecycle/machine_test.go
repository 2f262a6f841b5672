package lifecycle

import (
	"errors"
	"testing"

	"github.com/driftdev/drift/domain/pattern"
)

func lifecyclePattern(status pattern.Status) *pattern.Pattern {
	p := pattern.New(pattern.CreateInput{
		Category:   pattern.CategoryAPI,
		Name:       "RouteNaming",
		Confidence: 0.8,
	})
	p.Status = status
	return p
}

func TestInterpreter_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    pattern.Status
		to      pattern.Status
		wantErr bool
	}{
		{name: "discovered to approved", from: pattern.StatusDiscovered, to: pattern.StatusApproved},
		{name: "discovered to ignored", from: pattern.StatusDiscovered, to: pattern.StatusIgnored},
		{name: "ignored to approved", from: pattern.StatusIgnored, to: pattern.StatusApproved},
		{name: "approved to ignored", from: pattern.StatusApproved, to: pattern.StatusIgnored, wantErr: true},
		{name: "approved to approved", from: pattern.StatusApproved, to: pattern.StatusApproved, wantErr: true},
		{name: "ignored to ignored", from: pattern.StatusIgnored, to: pattern.StatusIgnored, wantErr: true},
		{name: "discovered to discovered", from: pattern.StatusDiscovered, to: pattern.StatusDiscovered, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := lifecyclePattern(tt.from)
			interp, err := NewInterpreter(p)
			if err != nil {
				t.Fatalf("NewInterpreter() error = %v", err)
			}
			interp.Start()
			defer interp.Stop()

			if got := interp.Status(); got != tt.from {
				t.Fatalf("initial Status() = %v, want %v", got, tt.from)
			}

			err = interp.Transition(tt.to, "reviewer")
			if tt.wantErr {
				if !errors.Is(err, pattern.ErrInvalidTransition) {
					t.Fatalf("Transition() error = %v, want ErrInvalidTransition", err)
				}

				var invalid *pattern.InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("error = %v, want InvalidTransitionError", err)
				}
				if invalid.From != tt.from || invalid.To != tt.to {
					t.Errorf("error transition = %v -> %v, want %v -> %v", invalid.From, invalid.To, tt.from, tt.to)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() error = %v", err)
			}
			if got := interp.Status(); got != tt.to {
				t.Errorf("Status() after transition = %v, want %v", got, tt.to)
			}
		})
	}
}

func TestInterpreter_ApprovedIsFinal(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter(lifecyclePattern(pattern.StatusApproved))
	if err != nil {
		t.Fatal(err)
	}
	interp.Start()
	defer interp.Stop()

	if !interp.Done() {
		t.Error("Done() = false, want true for an approved pattern")
	}
}

func TestInterpreter_CanTransition(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter(lifecyclePattern(pattern.StatusDiscovered))
	if err != nil {
		t.Fatal(err)
	}
	interp.Start()
	defer interp.Stop()

	if !interp.CanTransition(pattern.StatusApproved) {
		t.Error("CanTransition(approved) = false, want true from discovered")
	}
	if interp.CanTransition(pattern.StatusDiscovered) {
		t.Error("CanTransition(discovered) = true, want false for same state")
	}
}

func TestInterpreter_TransitionUpdatesContext(t *testing.T) {
	t.Parallel()

	p := lifecyclePattern(pattern.StatusDiscovered)
	interp, err := NewInterpreter(p)
	if err != nil {
		t.Fatal(err)
	}
	interp.Start()
	defer interp.Stop()

	if err := interp.Transition(pattern.StatusApproved, "reviewer"); err != nil {
		t.Fatal(err)
	}

	if p.Status != pattern.StatusApproved {
		t.Errorf("pattern status = %v, want approved after transition", p.Status)
	}
	if p.ApprovedBy != "reviewer" {
		t.Errorf("ApprovedBy = %q, want reviewer", p.ApprovedBy)
	}
}
