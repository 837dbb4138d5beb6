// Package part defines the particle data model: particle records, type
// definitions and per-particle species state. The spatial grid owns the
// particles; everything here is plain data mutated by the engine.
package part

import "github.com/LNR1001/tissue-forge/internal/geom"

// Particle flags.
const (
	FlagNone    uint32 = 0
	FlagGhost   uint32 = 1 << 0
	FlagCluster uint32 = 1 << 1 // bound to a cluster
	FlagFrozen  uint32 = 1 << 2
)

// Particle is one point/sphere agent. Position is global; the grid keeps
// the cell assignment. Force and Flux are accumulators cleared at the
// start of every step and consumed by the integrator.
type Particle struct {
	Position geom.Vec3
	Velocity geom.Vec3
	Force    geom.Vec3

	// Flux holds the per-species concentration deltas accumulated during
	// the current (sub-)step, same ordering as State.
	Flux []float64

	// State is the species concentration vector, nil for stateless types.
	State StateVector

	// X0 is the position at the last sorted-index rebuild; the grid uses
	// it to track accumulated displacement.
	X0 geom.Vec3

	Radius float64
	Mass   float64

	ID      int32
	TypeID  int32
	Cluster int32
	Flags   uint32
}

// ClearAccumulators zeroes the force and flux accumulators.
func (p *Particle) ClearAccumulators() {
	p.Force = geom.Vec3{}
	for i := range p.Flux {
		p.Flux[i] = 0
	}
}
