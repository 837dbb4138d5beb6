// Package boundary implements per-face boundary conditions: periodic
// wrapping, free-slip and no-slip reflection, potential walls and
// species-resetting inflow faces.
package boundary

import (
	"fmt"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/space"
)

// Mode is a boundary face behavior.
type Mode int

const (
	// Periodic wraps positions across to the opposite face, force-free.
	Periodic Mode = iota

	// FreeSlip reflects the velocity and force components normal to the
	// face when a particle would cross it.
	FreeSlip

	// NoSlip reflects the normal and tangential components both.
	NoSlip

	// PotentialWall evaluates a per-type potential against a synthetic
	// wall particle at the perpendicular distance to the face.
	PotentialWall

	// Reset behaves as periodic for position and reinitializes the
	// particle's species vector to its type's declared initial
	// concentrations on crossing, modeling inflow replenishment.
	Reset
)

func (m Mode) String() string {
	switch m {
	case Periodic:
		return "periodic"
	case FreeSlip:
		return "free-slip"
	case NoSlip:
		return "no-slip"
	case PotentialWall:
		return "potential"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Face is the condition on one domain face. For potential walls the
// synthetic wall particle carries Velocity and Radius as the "other
// side" of the pair evaluation.
type Face struct {
	Mode     Mode
	Velocity geom.Vec3
	Radius   float64

	// pots maps particle type id to the wall potential, nil-padded.
	pots []*potential.Potential
}

// SetPotential binds the wall potential for a particle type.
func (f *Face) SetPotential(typeID int32, p *potential.Potential) {
	for int(typeID) >= len(f.pots) {
		f.pots = append(f.pots, nil)
	}
	f.pots[typeID] = p
}

// PotentialFor returns the wall potential bound to a type, or nil.
func (f *Face) PotentialFor(typeID int32) *potential.Potential {
	if int(typeID) >= len(f.pots) {
		return nil
	}
	return f.pots[typeID]
}

// Conditions is the full set of six face conditions.
type Conditions struct {
	Faces [space.NumFaces]Face
}

// NewPeriodic returns all-periodic conditions, the default.
func NewPeriodic() *Conditions {
	return &Conditions{}
}

// Validate checks pairing rules: position-wrapping modes (periodic,
// reset) must be matched by a wrapping mode on the opposite face, since
// a particle leaving one face re-enters through the other.
func (bc *Conditions) Validate() error {
	for axis := 0; axis < 3; axis++ {
		lo, hi := &bc.Faces[2*axis], &bc.Faces[2*axis+1]
		if wraps(lo.Mode) != wraps(hi.Mode) {
			return fmt.Errorf(
				"boundary: axis %d mixes wrapping mode %v with non-wrapping %v",
				axis, lo.Mode, hi.Mode)
		}
	}
	return nil
}

func wraps(m Mode) bool { return m == Periodic || m == Reset }

// PeriodicMask returns the grid periodicity implied by the conditions:
// axes whose faces wrap positions.
func (bc *Conditions) PeriodicMask() uint8 {
	var mask uint8
	for axis := 0; axis < 3; axis++ {
		if wraps(bc.Faces[2*axis].Mode) {
			mask |= 1 << axis
		}
	}
	return mask
}
