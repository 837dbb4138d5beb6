package engine

import (
	"github.com/LNR1001/tissue-forge/internal/flux"
	"github.com/LNR1001/tissue-forge/internal/part"
)

// Advance is the canonical explicit-Euler caller for the buffers a Step
// leaves behind: velocity and position from the accumulated forces
// (velocity-free position drag for overdamped types), boundary
// kinematics on edge cells, and the final flux sub-step's concentration
// update. Kept separate from Step so external integrators can consume
// the buffers their own way.
func (e *Engine) Advance() {
	e.mu.Lock()
	defer e.mu.Unlock()

	dt := e.dt
	dtf := dt / float64(e.nrFluxSteps)
	typeOf := func(id int32) *part.Type { return &e.types[id] }

	for ci := range e.space.Cells {
		c := &e.space.Cells[ci]
		for i := range c.Parts {
			p := &c.Parts[i]
			if p.Flags&part.FlagFrozen != 0 {
				continue
			}

			t := &e.types[p.TypeID]
			switch t.Dynamics {
			case part.Overdamped:
				// Force acts as a drift velocity scaled by mobility
				// 1/m; the velocity buffer stays untouched.
				if p.Mass > 0 {
					p.Position = p.Position.Add(p.Force.Scale(dt / p.Mass))
				}
			default:
				if p.Mass > 0 {
					p.Velocity = p.Velocity.Add(p.Force.Scale(dt / p.Mass))
				}
				p.Position = p.Position.Add(p.Velocity.Scale(dt))
			}

			if c.BoundaryMask != 0 {
				e.boundary.ApplyKinematics(p, typeOf, e.space.Origin, e.space.Dim)
			}

			if len(p.State) > 0 {
				flux.Integrate(p, t.Species, dtf)
			}
		}
	}
}
