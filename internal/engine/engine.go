// Package engine ties the simulation together: it owns the spatial
// grid, the interaction and flux matrices, the boundary conditions and
// the compute backend, and drives the per-step pipeline of accumulator
// prep, displacement check, scheduled evaluation and flux sub-stepping.
package engine

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LNR1001/tissue-forge/internal/boundary"
	"github.com/LNR1001/tissue-forge/internal/compute"
	"github.com/LNR1001/tissue-forge/internal/flux"
	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/sched"
	"github.com/LNR1001/tissue-forge/internal/space"
)

// Options configure a new engine.
type Options struct {
	Origin geom.Vec3
	Dim    geom.Vec3
	Cells  [3]int
	Cutoff float64

	Dt          float64
	NrFluxSteps int

	// Boundary defaults to fully periodic when nil.
	Boundary *boundary.Conditions

	// Types registered up front; slice index becomes the type id.
	Types []part.Type

	// Backend name: "cpu", "cuda" or "auto" (default).
	Backend string
}

// Engine is an explicit simulation context. All mutating entry points
// are serialized on the step mutex; refresh calls additionally reject
// instead of blocking while a step is in flight.
type Engine struct {
	mu       sync.Mutex
	stepping atomic.Bool

	space    *space.Space
	graph    *sched.Graph
	pool     *sched.Pool
	backend  compute.Backend
	pots     *potential.Matrix
	fluxes   *flux.Matrix
	boundary *boundary.Conditions
	types    []part.Type

	dt          float64
	nrFluxSteps int
	time        float64
	step        int64
	epot        float64

	// Particle id allocation with recycling.
	nextID  int32
	freeIDs []int32

	// Wall-clock step durations, newest last, for the rate accessor.
	stepTimes []time.Duration

	logger *log.Logger
}

// New validates the options and builds an engine. No workers run until
// Start is called.
func New(opts Options) (*Engine, error) {
	if opts.Dt <= 0 {
		return nil, fmt.Errorf("engine: dt must be positive, got %g", opts.Dt)
	}
	if opts.NrFluxSteps < 1 {
		opts.NrFluxSteps = 1
	}
	if len(opts.Types) == 0 {
		return nil, fmt.Errorf("engine: at least one particle type required")
	}

	bc := opts.Boundary
	if bc == nil {
		bc = boundary.NewPeriodic()
	}
	if err := bc.Validate(); err != nil {
		return nil, err
	}

	if opts.Cutoff <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrBadCutoff, opts.Cutoff)
	}
	for k := 0; k < 3; k++ {
		if opts.Cells[k] > 0 && opts.Dim[k]/float64(opts.Cells[k]) < opts.Cutoff {
			return nil, fmt.Errorf("%w: cell edge %g on axis %d below cutoff %g",
				ErrBadCutoff, opts.Dim[k]/float64(opts.Cells[k]), k, opts.Cutoff)
		}
	}

	s, err := space.New(opts.Origin, opts.Dim, opts.Cells, opts.Cutoff, bc.PeriodicMask())
	if err != nil {
		return nil, err
	}

	types := make([]part.Type, len(opts.Types))
	copy(types, opts.Types)
	for i := range types {
		types[i].ID = int32(i)
		types[i].Count = 0
	}

	be, err := compute.New(opts.Backend)
	if err != nil {
		return nil, err
	}

	return &Engine{
		space:       s,
		graph:       sched.BuildGraph(s),
		backend:     be,
		pots:        potential.NewMatrix(len(types)),
		fluxes:      flux.NewMatrix(len(types)),
		boundary:    bc,
		types:       types,
		dt:          opts.Dt,
		nrFluxSteps: opts.NrFluxSteps,
		logger:      log.New(io.Discard, "engine: ", log.LstdFlags),
	}, nil
}

// SetLogWriter directs the engine's diagnostic log.
func (e *Engine) SetLogWriter(w io.Writer) {
	e.logger.SetOutput(w)
}

// Start launches the worker pool with the given runner count (zero
// means GOMAXPROCS). Idempotent while the pool is running.
func (e *Engine) Start(nrRunners int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		e.pool = sched.NewPool(nrRunners)
	}
	e.pool.Start()
	e.logger.Printf("started %d runners over %d cells", e.pool.Workers(), len(e.space.Cells))
}

// Close stops the workers and releases backend resources.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool != nil {
		e.pool.Stop()
	}
	e.backend.Cleanup()
}

// AddPotential binds a potential to a type pair. The potential's domain
// must fit under the interaction cutoff, so the candidate pruning never
// drops a pair the potential would act on.
func (e *Engine) AddPotential(i, j int32, p *potential.Potential) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkType(i); err != nil {
		return err
	}
	if err := e.checkType(j); err != nil {
		return err
	}
	if p.Flags&(potential.FlagScaled|potential.FlagShifted) == 0 && p.B > e.space.Cutoff {
		return fmt.Errorf("%w: domain end %g over cutoff %g", ErrBadPotential, p.B, e.space.Cutoff)
	}
	e.pots.Set(i, j, p)
	return nil
}

// AddWallPotential binds a potential to a boundary face for one type
// (negative for all types); the face must be a potential wall.
func (e *Engine) AddWallPotential(face int, typeID int32, p *potential.Potential) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if face < 0 || face >= space.NumFaces {
		return fmt.Errorf("engine: no boundary face %d", face)
	}
	f := &e.boundary.Faces[face]
	if f.Mode != boundary.PotentialWall {
		return fmt.Errorf("engine: face %d is %v, not a potential wall", face, f.Mode)
	}
	if typeID < 0 {
		for i := range e.types {
			f.SetPotential(int32(i), p)
		}
		return nil
	}
	if err := e.checkType(typeID); err != nil {
		return err
	}
	f.SetPotential(typeID, p)
	return nil
}

// AddFlux appends a transport term for the ordered type pair (i, j).
// Species are named; both types must declare theirs.
func (e *Engine) AddFlux(i, j int32, speciesA, speciesB string, t flux.Term) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkType(i); err != nil {
		return err
	}
	if err := e.checkType(j); err != nil {
		return err
	}
	sa := e.types[i].SpeciesIndex(speciesA)
	if sa < 0 {
		return fmt.Errorf("engine: type %q has no species %q", e.types[i].Name, speciesA)
	}
	sb := e.types[j].SpeciesIndex(speciesB)
	if sb < 0 {
		return fmt.Errorf("engine: type %q has no species %q", e.types[j].Name, speciesB)
	}
	t.SpeciesA = int32(sa)
	t.SpeciesB = int32(sb)
	e.fluxes.Add(i, j, t)
	return nil
}

func (e *Engine) checkType(id int32) error {
	if id < 0 || int(id) >= len(e.types) {
		return fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	return nil
}

// AddParticle creates a particle of the given type, recycling a freed
// id when one exists, and returns the id.
func (e *Engine) AddParticle(typeID int32, pos, vel geom.Vec3) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkType(typeID); err != nil {
		return -1, err
	}
	t := &e.types[typeID]

	var id int32
	if n := len(e.freeIDs); n > 0 {
		id = e.freeIDs[n-1]
		e.freeIDs = e.freeIDs[:n-1]
	} else {
		id = e.nextID
		e.nextID++
	}

	p := part.Particle{
		Position: pos,
		Velocity: vel,
		Radius:   t.Radius,
		Mass:     t.Mass,
		ID:       id,
		TypeID:   typeID,
		Cluster:  -1,
		State:    t.InitialState(),
	}
	if len(p.State) > 0 {
		p.Flux = make([]float64, len(p.State))
	}
	e.space.Insert(p)
	t.Count++
	return id, nil
}

// DeleteParticle removes a particle and releases its id for reuse.
func (e *Engine) DeleteParticle(id int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.space.Remove(id)
	if err != nil {
		return fmt.Errorf("%w: id %d", ErrUnknownParticle, id)
	}
	e.types[p.TypeID].Count--
	e.freeIDs = append(e.freeIDs, id)
	return nil
}

// Particle returns the live record for an id, or nil. The pointer is
// valid until the next insertion, removal or step.
func (e *Engine) Particle(id int32) *part.Particle { return e.space.Get(id) }

// Step advances one timestep: zero accumulators, Verlet displacement
// check, backend evaluation, then flux sub-stepping. Forces and the
// final sub-step's flux deltas are left in the particle buffers for
// Advance (or an external integrator) to consume. Returns the potential
// energy of the step.
func (e *Engine) Step() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pool == nil {
		return 0, ErrNotStarted
	}
	e.stepping.Store(true)
	defer e.stepping.Store(false)
	start := time.Now()

	e.space.Prepare()
	if e.space.VerletUpdate() {
		e.logger.Printf("step %d: sorted index rebuild", e.step)
	}

	req := compute.Request{
		Space:    e.space,
		Graph:    e.graph,
		Pool:     e.pool,
		Pots:     e.pots,
		Fluxes:   e.fluxes,
		Boundary: e.boundary,
		Types:    e.types,
		Dt:       e.dt,
		Cutoff:   e.space.Cutoff,
	}
	res, err := e.backend.Eval(&req)
	if err != nil {
		return 0, &EngineError{Step: e.step, Time: e.time, Wrapped: err}
	}

	// Intermediate flux sub-steps integrate and re-evaluate transport on
	// the unchanged sorted index; the final deltas stay accumulated.
	if !e.fluxes.Empty() && e.nrFluxSteps > 1 {
		dtf := e.dt / float64(e.nrFluxSteps)
		sub := req
		sub.FluxOnly = true
		for k := 1; k < e.nrFluxSteps; k++ {
			e.integrateFluxes(dtf)
			if _, err := e.backend.Eval(&sub); err != nil {
				return 0, &EngineError{Step: e.step, Time: e.time, Wrapped: err}
			}
		}
	}

	e.epot = res.Epot
	e.step++
	e.time += e.dt
	e.recordStepTime(time.Since(start))
	return res.Epot, nil
}

func (e *Engine) integrateFluxes(dt float64) {
	for ci := range e.space.Cells {
		parts := e.space.Cells[ci].Parts
		for i := range parts {
			if len(parts[i].State) == 0 {
				continue
			}
			flux.Integrate(&parts[i], e.types[parts[i].TypeID].Species, dt)
		}
	}
}

func (e *Engine) recordStepTime(d time.Duration) {
	const window = 32
	e.stepTimes = append(e.stepTimes, d)
	if len(e.stepTimes) > window {
		e.stepTimes = e.stepTimes[1:]
	}
}

// CellCount returns the number of grid cells.
func (e *Engine) CellCount() int { return len(e.space.Cells) }

// ParticleCount returns the number of live particles.
func (e *Engine) ParticleCount() int { return e.space.NrParts() }

// Time returns the simulated time.
func (e *Engine) Time() float64 { return e.time }

// StepCount returns the number of completed steps.
func (e *Engine) StepCount() int64 { return e.step }

// Dt returns the mechanical timestep.
func (e *Engine) Dt() float64 { return e.dt }

// PotentialEnergy returns the last step's potential energy.
func (e *Engine) PotentialEnergy() float64 { return e.epot }

// Space exposes the grid for inspection and custom integrators.
func (e *Engine) Space() *space.Space { return e.space }

// Types returns the registered type table.
func (e *Engine) Types() []part.Type { return e.types }

// Backend returns the active compute backend's name.
func (e *Engine) Backend() string { return e.backend.Name() }

// KineticEnergy sums the particles' kinetic energy.
func (e *Engine) KineticEnergy() float64 {
	var ke float64
	for ci := range e.space.Cells {
		parts := e.space.Cells[ci].Parts
		for i := range parts {
			ke += 0.5 * parts[i].Mass * parts[i].Velocity.Norm2()
		}
	}
	return ke
}

// Temperature is the instantaneous kinetic temperature in reduced units
// (Boltzmann constant one), zero for an empty system.
func (e *Engine) Temperature() float64 {
	n := e.space.NrParts()
	if n == 0 {
		return 0
	}
	return 2 * e.KineticEnergy() / (3 * float64(n))
}

// StepsPerSecond reports the recent stepping rate from a rolling
// wall-clock window.
func (e *Engine) StepsPerSecond() float64 {
	if len(e.stepTimes) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range e.stepTimes {
		total += d
	}
	if total <= 0 {
		return 0
	}
	return float64(len(e.stepTimes)) / total.Seconds()
}
