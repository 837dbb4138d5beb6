// Package compute provides the interaction-evaluation backends. The
// CPU backend drives the task-graph scheduler over worker threads; the
// CUDA backend (build tag "cuda") runs the same Sort/Self/Pair
// decomposition as batched kernels over flattened particle buffers.
// Both conform to one interface, so correctness tests run identically
// against either.
package compute

import (
	"fmt"

	"github.com/LNR1001/tissue-forge/internal/boundary"
	"github.com/LNR1001/tissue-forge/internal/flux"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/sched"
	"github.com/LNR1001/tissue-forge/internal/space"
)

// Request is one interaction-evaluation pass over the grid. The backend
// reads the tables and writes the particles' force and flux
// accumulators; it never moves particles.
type Request struct {
	Space *space.Space
	Graph *sched.Graph
	Pool  *sched.Pool

	Pots     *potential.Matrix
	Fluxes   *flux.Matrix
	Boundary *boundary.Conditions
	Types    []part.Type

	Dt     float64
	Cutoff float64

	// FluxOnly skips force evaluation: intermediate flux sub-steps
	// reuse the sorted index and recompute transport only.
	FluxOnly bool
}

// Result of one evaluation pass.
type Result struct {
	// Epot is the total potential energy accumulated by the pass.
	Epot float64
}

// Backend evaluates interaction passes.
type Backend interface {
	Name() string
	Available() bool
	Eval(req *Request) (Result, error)
	Cleanup()
}

// New returns the backend with the given name: "cpu", "cuda" or "auto".
func New(name string) (Backend, error) {
	switch name {
	case "", "auto":
		return AutoSelect(), nil
	case "cpu":
		return NewCPUBackend(), nil
	case "cuda":
		b := NewCUDABackend()
		if !b.Available() {
			return nil, fmt.Errorf("compute: cuda backend not available")
		}
		return b, nil
	}
	return nil, fmt.Errorf("compute: unknown backend %q", name)
}

// AutoSelect prefers CUDA when available, falling back to CPU.
func AutoSelect() Backend {
	cuda := NewCUDABackend()
	if cuda.Available() {
		return cuda
	}
	return NewCPUBackend()
}
