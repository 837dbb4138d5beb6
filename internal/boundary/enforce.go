package boundary

import (
	"math"
	"math/rand"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/space"
)

// faceCoord returns the face's plane coordinate on its axis.
func faceCoord(face int, origin, dim geom.Vec3) float64 {
	axis := space.FaceAxis(face)
	if space.FacePositive(face) {
		return origin[axis] + dim[axis]
	}
	return origin[axis]
}

// WallInteract accumulates potential-wall forces for one particle in a
// boundary cell. mask is the cell's boundary-face bitmask; dt and rng
// feed the dissipative kind's stochastic term. Returns the potential
// energy contribution.
func (bc *Conditions) WallInteract(p *part.Particle, mask uint8, origin, dim geom.Vec3, dt float64, rng *rand.Rand) float64 {
	var epot float64
	for face := 0; face < space.NumFaces; face++ {
		if mask&(1<<face) == 0 || bc.Faces[face].Mode != PotentialWall {
			continue
		}
		f := &bc.Faces[face]
		pot := f.PotentialFor(p.TypeID)
		if pot == nil {
			continue
		}

		axis := space.FaceAxis(face)
		// Separation vector from the synthetic wall particle to the
		// real one: perpendicular to the face, pointing inward.
		var dx geom.Vec3
		dx[axis] = p.Position[axis] - faceCoord(face, origin, dim)
		r2 := dx[axis] * dx[axis]
		if r2 == 0 {
			// Exactly on the wall the normal has no sign; skip the
			// contribution and let the kinematic pass reflect it.
			continue
		}

		if pot.Flags&potential.FlagDPD != 0 {
			dv := p.Velocity.Sub(f.Velocity)
			fv, e := pot.EvalDPD(dx, dv, r2, 1/math.Sqrt(dt), rng.NormFloat64())
			p.Force = p.Force.Add(fv)
			epot += e
			continue
		}

		e, fOverR := pot.EvalShifted(r2, p.Radius, f.Radius)
		p.Force[axis] -= fOverR * dx[axis]
		epot += e
	}
	return epot
}

// ApplyKinematics applies the position/velocity/state rules for one
// particle after a position update: wrapping, reflection and species
// reset. typeOf resolves the particle's type for reset initial
// concentrations. Runs only for particles in boundary-flagged cells.
func (bc *Conditions) ApplyKinematics(p *part.Particle, typeOf func(int32) *part.Type, origin, dim geom.Vec3) {
	for axis := 0; axis < 3; axis++ {
		lo := origin[axis]
		hi := origin[axis] + dim[axis]

		crossedLo := p.Position[axis] < lo
		crossedHi := p.Position[axis] >= hi
		if !crossedLo && !crossedHi {
			continue
		}
		face := 2 * axis
		if crossedHi {
			face++
		}

		switch bc.Faces[face].Mode {
		case Periodic:
			p.Position[axis] = lo + geom.Wrap(p.Position[axis]-lo, dim[axis])

		case Reset:
			p.Position[axis] = lo + geom.Wrap(p.Position[axis]-lo, dim[axis])
			if t := typeOf(p.TypeID); t != nil {
				init := t.InitialState()
				copy(p.State, init)
			}

		case FreeSlip, PotentialWall:
			// Reflect across the face plane; potential walls act as
			// hard free-slip backstops for particles that outran the
			// wall force.
			if crossedLo {
				p.Position[axis] = 2*lo - p.Position[axis]
			} else {
				p.Position[axis] = 2*hi - p.Position[axis]
			}
			p.Velocity[axis] = -p.Velocity[axis]
			p.Force[axis] = -p.Force[axis]

		case NoSlip:
			if crossedLo {
				p.Position[axis] = 2*lo - p.Position[axis]
			} else {
				p.Position[axis] = 2*hi - p.Position[axis]
			}
			// Tangential components reverse too: the wall drags the
			// particle to rest in its frame.
			p.Velocity = p.Velocity.Scale(-1)
			p.Force[axis] = -p.Force[axis]
		}
	}
}
