package pattern

import (
	"errors"
	"fmt"
)

var (
	// ErrPatternNotFound indicates the pattern was not found.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrPatternExists indicates a pattern with this ID already exists.
	ErrPatternExists = errors.New("pattern already exists")

	// ErrInvalidTransition indicates a status transition not permitted
	// by the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidPattern indicates the pattern record is malformed.
	ErrInvalidPattern = errors.New("invalid pattern")

	// ErrStorage indicates a storage backend failure.
	ErrStorage = errors.New("pattern storage error")
)

// NotFoundError reports which pattern was missing.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pattern not found: %s", e.ID)
}

// Is satisfies errors.Is against ErrPatternNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrPatternNotFound
}

// AlreadyExistsError reports a duplicate pattern ID on Add.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("pattern already exists: %s", e.ID)
}

// Is satisfies errors.Is against ErrPatternExists.
func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrPatternExists
}

// InvalidTransitionError carries the rejected transition.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s -> %s", e.ID, e.From, e.To)
}

// Is satisfies errors.Is against ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
