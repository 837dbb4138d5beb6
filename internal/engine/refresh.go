package engine

import (
	"fmt"

	"github.com/LNR1001/tissue-forge/internal/boundary"
	"github.com/LNR1001/tissue-forge/internal/potential"
)

// Refresh entry points swap engine tables wholesale between steps. They
// reject instead of blocking when a step is executing: the caller is
// holding stale assumptions either way, and waiting out a step hides
// the race rather than reporting it.

// RefreshPotentials replaces the interaction matrix.
func (e *Engine) RefreshPotentials(m *potential.Matrix) error {
	if e.stepping.Load() {
		return ErrStepInFlight
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if m.MaxType() != len(e.types) {
		return fmt.Errorf("%w: matrix for %d types, engine has %d",
			ErrBadPotential, m.MaxType(), len(e.types))
	}
	for i := int32(0); i < int32(m.MaxType()); i++ {
		for j := i; j < int32(m.MaxType()); j++ {
			p := m.Get(i, j)
			if p == nil {
				continue
			}
			if p.Flags&(potential.FlagScaled|potential.FlagShifted) == 0 && p.B > e.space.Cutoff {
				return fmt.Errorf("%w: pair (%d,%d) domain end %g over cutoff %g",
					ErrBadPotential, i, j, p.B, e.space.Cutoff)
			}
		}
	}
	e.pots = m
	return nil
}

// RefreshBoundaryConditions replaces the face conditions. The wrapping
// axes must match the grid's periodicity; changing those requires a new
// engine, since the cell pair topology bakes them in.
func (e *Engine) RefreshBoundaryConditions(bc *boundary.Conditions) error {
	if e.stepping.Load() {
		return ErrStepInFlight
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := bc.Validate(); err != nil {
		return err
	}
	if bc.PeriodicMask() != e.space.Periodic {
		return ErrBoundaryMismatch
	}
	e.boundary = bc
	return nil
}

// RefreshParticleBuffers re-grids every particle into its current cell
// and invalidates the sorted index, for callers that moved particles
// directly through the space accessors.
func (e *Engine) RefreshParticleBuffers() error {
	if e.stepping.Load() {
		return ErrStepInFlight
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.space.Rebuild(e.space.Origin, e.space.Dim, e.space.NCells, e.space.Cutoff)
}
