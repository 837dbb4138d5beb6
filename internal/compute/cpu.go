package compute

import (
	"math"
	"math/rand"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/sched"
)

// CPUBackend runs the evaluation pass through the task-graph scheduler.
// It keeps one RNG per cell for the stochastic dissipative terms: a
// task holds its cells exclusively while it runs, so the generators are
// never shared, and per-cell seeding keeps single-worker runs
// reproducible.
type CPUBackend struct {
	rngs []*rand.Rand
}

// NewCPUBackend returns a CPU evaluation backend.
func NewCPUBackend() *CPUBackend { return &CPUBackend{} }

func (b *CPUBackend) Name() string    { return "cpu" }
func (b *CPUBackend) Available() bool { return true }
func (b *CPUBackend) Cleanup()        {}

// Eval runs one pass: sort tasks refresh stale cell indices, self tasks
// cover in-cell pairs and boundary walls, pair tasks walk the sorted
// candidate fronts of neighboring cells. Returns the summed potential
// energy.
func (b *CPUBackend) Eval(req *Request) (Result, error) {
	s := req.Space
	nc := len(s.Cells)
	b.ensureRNGs(nc)

	rebuilding := s.RebuildNeeded()
	isqrtDT := 0.0
	if req.Dt > 0 {
		isqrtDT = 1 / math.Sqrt(req.Dt)
	}

	req.Pool.RunStep(req.Graph, nc, func(t *sched.Task) {
		switch t.Kind {
		case sched.SortTask:
			s.SortCell(t.CI)
		case sched.SelfTask:
			b.evalSelf(req, t.CI, isqrtDT)
		case sched.PairTask:
			b.evalCellPair(req, t, isqrtDT)
		}
	})

	if rebuilding {
		s.FinishRebuild()
	}

	var epot float64
	for ci := range s.Cells {
		epot += s.Cells[ci].Epot
	}
	s.Epot = epot
	return Result{Epot: epot}, nil
}

func (b *CPUBackend) ensureRNGs(nc int) {
	for len(b.rngs) < nc {
		b.rngs = append(b.rngs, rand.New(rand.NewSource(int64(len(b.rngs))+1)))
	}
}

// evalSelf covers all unordered pairs inside one cell plus the cell's
// boundary-wall interactions.
func (b *CPUBackend) evalSelf(req *Request, ci int32, isqrtDT float64) {
	s := req.Space
	c := &s.Cells[ci]
	parts := c.Parts
	rng := b.rngs[ci]

	var epot float64
	for i := range parts {
		pi := &parts[i]
		for j := i + 1; j < len(parts); j++ {
			dx := pi.Position.Sub(parts[j].Position)
			epot += b.interact(req, pi, &parts[j], dx, isqrtDT, rng)
		}
		if !req.FluxOnly && c.BoundaryMask != 0 && req.Boundary != nil {
			epot += req.Boundary.WallInteract(pi, c.BoundaryMask, s.Origin, s.Dim, req.Dt, rng)
		}
	}
	c.Epot += epot
}

// evalCellPair covers candidate pairs between two neighbor cells; the
// energy lands on the task's owned cell.
func (b *CPUBackend) evalCellPair(req *Request, t *sched.Task, isqrtDT float64) {
	s := req.Space
	ca := &s.Cells[t.CI]
	cb := &s.Cells[t.CJ]
	rng := b.rngs[t.CI]

	var epot float64
	s.PairWalk(t.CI, t.CJ, t.Dir, t.Shift, func(i, j int) {
		pi := &ca.Parts[i]
		pj := &cb.Parts[j]
		dx := pi.Position.Sub(pj.Position.Add(t.Shift))
		epot += b.interact(req, pi, pj, dx, isqrtDT, rng)
	})
	ca.Epot += epot
}

// interact evaluates one particle pair given their separation dx =
// xi-xj (already image-shifted across the cell boundary), accumulating
// forces and flux deltas on both sides and returning the pair energy.
func (b *CPUBackend) interact(req *Request, pi, pj *part.Particle, dx geom.Vec3, isqrtDT float64, rng *rand.Rand) float64 {
	r2 := dx.Norm2()
	cutoff2 := req.Cutoff * req.Cutoff
	if r2 > cutoff2 || r2 == 0 {
		return 0
	}

	var epot float64
	if !req.FluxOnly && req.Pots != nil {
		if pot := req.Pots.Get(pi.TypeID, pj.TypeID); pot != nil {
			epot = evalForce(pot, pi, pj, dx, r2, isqrtDT, rng)
		}
	}

	if req.Fluxes != nil {
		r := math.Sqrt(r2)
		if fl := req.Fluxes.Get(pi.TypeID, pj.TypeID); fl != nil {
			fl.Eval(pi, pj, r, req.Cutoff)
		}
		if pi.TypeID != pj.TypeID {
			if fl := req.Fluxes.Get(pj.TypeID, pi.TypeID); fl != nil {
				fl.Eval(pj, pi, r, req.Cutoff)
			}
		}
	}
	return epot
}

// evalForce applies one bound potential to a pair, handling the
// dissipative and tabulated paths.
func evalForce(pot *potential.Potential, pi, pj *part.Particle, dx geom.Vec3, r2, isqrtDT float64, rng *rand.Rand) float64 {
	adx, ar2 := pot.ApplyImage(dx)
	if ar2 == 0 {
		return 0
	}

	if pot.Flags&potential.FlagDPD != 0 {
		dv := pi.Velocity.Sub(pj.Velocity)
		fv, e := pot.EvalDPD(adx, dv, ar2, isqrtDT, rng.NormFloat64())
		pi.Force = pi.Force.Add(fv)
		pj.Force = pj.Force.Sub(fv)
		return e
	}

	e, fOverR := pot.EvalShifted(ar2, pi.Radius, pj.Radius)
	if fOverR == 0 && e == 0 {
		return 0
	}
	pi.Force = pi.Force.Sub(adx.Scale(fOverR))
	pj.Force = pj.Force.Add(adx.Scale(fOverR))
	return e
}
