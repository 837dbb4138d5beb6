package compute

import (
	"math"
	"math/rand"
	"testing"

	"github.com/LNR1001/tissue-forge/internal/boundary"
	"github.com/LNR1001/tissue-forge/internal/flux"
	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/sched"
	"github.com/LNR1001/tissue-forge/internal/space"
)

type fixture struct {
	space *space.Space
	graph *sched.Graph
	pool  *sched.Pool
	req   *Request
}

func newFixture(t *testing.T, cells [3]int, periodic uint8, nrTypes int) *fixture {
	t.Helper()
	s, err := space.New(geom.Vec3{}, geom.Vec3{9, 9, 9}, cells, 1.0, periodic)
	if err != nil {
		t.Fatal(err)
	}
	g := sched.BuildGraph(s)
	p := sched.NewPool(4)
	t.Cleanup(p.Stop)

	return &fixture{
		space: s,
		graph: g,
		pool:  p,
		req: &Request{
			Space:    s,
			Graph:    g,
			Pool:     p,
			Pots:     potential.NewMatrix(nrTypes),
			Fluxes:   flux.NewMatrix(nrTypes),
			Boundary: boundary.NewPeriodic(),
			Dt:       0.01,
			Cutoff:   s.Cutoff,
		},
	}
}

func (f *fixture) scatter(t *testing.T, n int, seed int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	for id := int32(0); id < int32(n); id++ {
		f.space.Insert(part.Particle{
			ID:     id,
			Radius: 0.3,
			Mass:   1,
			Position: geom.Vec3{
				rng.Float64() * 9, rng.Float64() * 9, rng.Float64() * 9,
			},
		})
	}
	f.space.Prepare()
	f.space.VerletUpdate()
}

func TestCPUTwoBodyHarmonic(t *testing.T) {
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)

	k, r0 := 50.0, 0.5
	pot, err := potential.NewHarmonic(k, r0, 0.05, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.req.Pots.Set(0, 0, pot)

	// Two particles 0.8 apart inside one cell, stretched past rest.
	f.space.Insert(part.Particle{ID: 0, Mass: 1, Position: geom.Vec3{1.0, 1.5, 1.5}})
	f.space.Insert(part.Particle{ID: 1, Mass: 1, Position: geom.Vec3{1.8, 1.5, 1.5}})
	f.space.Prepare()
	f.space.VerletUpdate()

	be := NewCPUBackend()
	res, err := be.Eval(f.req)
	if err != nil {
		t.Fatal(err)
	}

	d := 0.8 - r0
	wantE := k * d * d
	if math.Abs(res.Epot-wantE) > 1e-4 {
		t.Errorf("epot %g, want %g", res.Epot, wantE)
	}

	p0, p1 := f.space.Get(0), f.space.Get(1)
	// Stretched spring pulls the pair together along x.
	wantF := 2 * k * d
	if math.Abs(p0.Force[0]-wantF) > 1e-3 {
		t.Errorf("force on left %g, want %g", p0.Force[0], wantF)
	}
	if math.Abs(p0.Force[0]+p1.Force[0]) > 1e-9 {
		t.Errorf("forces not opposite: %g vs %g", p0.Force[0], p1.Force[0])
	}
	if p0.Force[1] != 0 || p0.Force[2] != 0 {
		t.Error("axial pair must produce axial force only")
	}
}

// The scheduled cell-pair evaluation must agree with a direct O(n^2)
// sum over minimum-image separations.
func TestCPUMatchesBruteForce(t *testing.T) {
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)

	pot, err := potential.NewHarmonic(20, 0.4, 0.02, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.req.Pots.Set(0, 0, pot)
	f.scatter(t, 150, 23)

	be := NewCPUBackend()
	res, err := be.Eval(f.req)
	if err != nil {
		t.Fatal(err)
	}

	// Gather evaluated forces, then recompute from scratch.
	type ref struct {
		force geom.Vec3
		pos   geom.Vec3
	}
	got := map[int32]ref{}
	for ci := range f.space.Cells {
		for i := range f.space.Cells[ci].Parts {
			p := &f.space.Cells[ci].Parts[i]
			got[p.ID] = ref{force: p.Force, pos: p.Position}
		}
	}

	dim := f.space.Dim
	minImage := func(dx geom.Vec3) geom.Vec3 {
		for k := 0; k < 3; k++ {
			if dx[k] > dim[k]/2 {
				dx[k] -= dim[k]
			} else if dx[k] < -dim[k]/2 {
				dx[k] += dim[k]
			}
		}
		return dx
	}

	var wantE float64
	wantF := map[int32]geom.Vec3{}
	for i := int32(0); i < 150; i++ {
		for j := i + 1; j < 150; j++ {
			dx := minImage(got[i].pos.Sub(got[j].pos))
			r2 := dx.Norm2()
			if r2 > f.req.Cutoff*f.req.Cutoff || r2 == 0 {
				continue
			}
			e, fOverR := pot.Eval(r2)
			wantE += e
			wantF[i] = wantF[i].Sub(dx.Scale(fOverR))
			wantF[j] = wantF[j].Add(dx.Scale(fOverR))
		}
	}

	if math.Abs(res.Epot-wantE) > 1e-6*(1+math.Abs(wantE)) {
		t.Errorf("epot %g, want %g", res.Epot, wantE)
	}
	for id := int32(0); id < 150; id++ {
		diff := got[id].force.Sub(wantF[id]).Norm()
		if diff > 1e-6 {
			t.Fatalf("particle %d force off by %g", id, diff)
		}
	}
}

func TestCPUMomentumConservation(t *testing.T) {
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)

	pot, err := potential.NewHarmonic(30, 0.3, 0.02, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.req.Pots.Set(0, 0, pot)
	f.scatter(t, 200, 41)

	be := NewCPUBackend()
	if _, err := be.Eval(f.req); err != nil {
		t.Fatal(err)
	}

	var total geom.Vec3
	for ci := range f.space.Cells {
		for i := range f.space.Cells[ci].Parts {
			total = total.Add(f.space.Cells[ci].Parts[i].Force)
		}
	}
	if total.Norm() > 1e-8 {
		t.Errorf("net force %v, want zero", total)
	}
}

func TestCPUFluxAcrossCells(t *testing.T) {
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)
	f.req.Fluxes.Add(0, 0, flux.Term{Kind: flux.Fick, Coef: 1.0})

	// Two stateful particles straddling a cell border, well within the
	// cutoff.
	mk := func(id int32, x, c float64) part.Particle {
		return part.Particle{
			ID: id, Mass: 1, Position: geom.Vec3{x, 1.5, 1.5},
			State: part.StateVector{c}, Flux: make([]float64, 1),
		}
	}
	f.space.Insert(mk(0, 2.8, 1.0))
	f.space.Insert(mk(1, 3.2, 0.0))
	f.space.Prepare()
	f.space.VerletUpdate()

	be := NewCPUBackend()
	if _, err := be.Eval(f.req); err != nil {
		t.Fatal(err)
	}

	hi, lo := f.space.Get(0), f.space.Get(1)
	if hi.Flux[0] >= 0 || lo.Flux[0] <= 0 {
		t.Fatalf("no exchange across cell border: %g, %g", hi.Flux[0], lo.Flux[0])
	}
	if math.Abs(hi.Flux[0]+lo.Flux[0]) > 1e-12 {
		t.Error("cross-cell exchange not conservative")
	}
}

func TestCPUFluxOnlySkipsForces(t *testing.T) {
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)

	pot, err := potential.NewHarmonic(50, 0.5, 0.05, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.req.Pots.Set(0, 0, pot)
	f.req.FluxOnly = true

	f.space.Insert(part.Particle{ID: 0, Mass: 1, Position: geom.Vec3{1.0, 1.5, 1.5}})
	f.space.Insert(part.Particle{ID: 1, Mass: 1, Position: geom.Vec3{1.8, 1.5, 1.5}})
	f.space.Prepare()
	f.space.VerletUpdate()

	be := NewCPUBackend()
	res, err := be.Eval(f.req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Epot != 0 {
		t.Errorf("flux-only pass accumulated energy %g", res.Epot)
	}
	if f.space.Get(0).Force != (geom.Vec3{}) {
		t.Error("flux-only pass wrote forces")
	}
}

func TestCPUWallForces(t *testing.T) {
	// Bounded z axis with a repulsive bottom wall.
	f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicX|space.PeriodicY, 1)
	f.req.Boundary.Faces[space.FaceBottom].Mode = boundary.PotentialWall
	f.req.Boundary.Faces[space.FaceTop].Mode = boundary.FreeSlip

	pot, err := potential.NewLinearWell(-10, 0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	f.req.Boundary.Faces[space.FaceBottom].SetPotential(0, pot)

	f.space.Insert(part.Particle{ID: 0, Mass: 1, Position: geom.Vec3{4.5, 4.5, 0.5}})
	f.space.Prepare()
	f.space.VerletUpdate()

	be := NewCPUBackend()
	if _, err := be.Eval(f.req); err != nil {
		t.Fatal(err)
	}

	if f.space.Get(0).Force[2] <= 0 {
		t.Errorf("wall force %g, want repulsion upward", f.space.Get(0).Force[2])
	}
}

func TestBackendSelection(t *testing.T) {
	if _, err := New("cpu"); err != nil {
		t.Fatal(err)
	}
	if _, err := New("nope"); err == nil {
		t.Fatal("unknown backend should fail")
	}
	b := AutoSelect()
	if b == nil || !b.Available() {
		t.Fatal("auto selection must return an available backend")
	}
}

// With a single runner the task execution order is fixed, so two
// evaluations of one configuration must agree to the last bit;
// tolerance comparisons would hide accumulation-order regressions.
func TestCPUDeterministicSingleRunner(t *testing.T) {
	const n = 200

	run := func() ([n * 3]uint64, uint64) {
		f := newFixture(t, [3]int{3, 3, 3}, space.PeriodicFull, 1)
		p := sched.NewPool(1)
		t.Cleanup(p.Stop)
		f.req.Pool = p

		pot, err := potential.NewHarmonic(40.0, 0.4, 0.05, 1.0)
		if err != nil {
			t.Fatal(err)
		}
		f.req.Pots.Set(0, 0, pot)
		f.scatter(t, n, 11)

		be := NewCPUBackend()
		res, err := be.Eval(f.req)
		if err != nil {
			t.Fatal(err)
		}

		var forces [n * 3]uint64
		for id := int32(0); id < n; id++ {
			force := f.space.Get(id).Force
			for k := 0; k < 3; k++ {
				forces[int(id)*3+k] = math.Float64bits(force[k])
			}
		}
		return forces, math.Float64bits(res.Epot)
	}

	forcesA, epotA := run()
	forcesB, epotB := run()
	if epotA != epotB {
		t.Errorf("epot bits differ between runs: %x vs %x", epotA, epotB)
	}
	for i := range forcesA {
		if forcesA[i] != forcesB[i] {
			t.Fatalf("force component %d differs: %x vs %x", i, forcesA[i], forcesB[i])
		}
	}
}
