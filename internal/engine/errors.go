package engine

import (
	"errors"
	"fmt"
)

// Domain errors for engine operations.
var (
	// ErrBadCutoff indicates a cutoff incompatible with the grid.
	ErrBadCutoff = errors.New("engine: cutoff exceeds cell edge or is not positive")

	// ErrBadPotential indicates a potential whose domain does not fit
	// under the interaction cutoff.
	ErrBadPotential = errors.New("engine: potential domain exceeds cutoff")

	// ErrUnknownType indicates a particle type id outside the
	// registered set.
	ErrUnknownType = errors.New("engine: unknown particle type")

	// ErrUnknownParticle indicates an id with no live particle.
	ErrUnknownParticle = errors.New("engine: unknown particle id")

	// ErrStepInFlight indicates a refresh attempted while a step is
	// executing.
	ErrStepInFlight = errors.New("engine: step in flight")

	// ErrNotStarted indicates Step was called before Start.
	ErrNotStarted = errors.New("engine: runners not started")

	// ErrBoundaryMismatch indicates refreshed boundary conditions whose
	// wrapping axes differ from the grid's periodicity.
	ErrBoundaryMismatch = errors.New("engine: boundary wrapping does not match grid periodicity")
)

// EngineError wraps an error with the step context it occurred in.
type EngineError struct {
	Step    int64
	Time    float64
	Wrapped error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("step %d (t=%g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *EngineError) Unwrap() error { return e.Wrapped }
