// Package flux implements per-species transport between neighboring
// particles: Fickian diffusion, secretion and uptake terms accumulated
// pairwise and explicit-Euler integrated, optionally on a finer
// sub-step than the mechanical update.
package flux

import (
	"fmt"

	"github.com/LNR1001/tissue-forge/internal/part"
)

// Kind selects the transport law of a term.
type Kind int

const (
	// Fick exchanges proportionally to the concentration difference.
	Fick Kind = iota

	// Secrete moves species out of the source toward a target level;
	// one-directional, gated to zero when the source is at or below
	// target.
	Secrete

	// Uptake absorbs species from the neighbor proportionally to the
	// carrier's own concentration; gated to zero when non-positive.
	Uptake
)

func (k Kind) String() string {
	switch k {
	case Fick:
		return "fick"
	case Secrete:
		return "secrete"
	case Uptake:
		return "uptake"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Term couples one species of the first type of an ordered type pair to
// one species of the second.
type Term struct {
	SpeciesA int32
	SpeciesB int32
	Kind     Kind
	Coef     float64
	Target   float64

	// Decay removes decay*c from the source side alongside each
	// exchange, modeling loss in transport.
	Decay float64
}

// Fluxes is the list of transport terms for one ordered type pair.
type Fluxes struct {
	Terms []Term
}

// Eval accumulates all terms for a particle pair at distance r within
// cutoff; pi is the first type of the ordered pair. The smoothing
// weight (1-r/cutoff)^2 fades exchange to zero at the cutoff.
func (f *Fluxes) Eval(pi, pj *part.Particle, r, cutoff float64) {
	if r >= cutoff {
		return
	}
	s := 1 - r/cutoff
	w := s * s

	for t := range f.Terms {
		term := &f.Terms[t]
		ci := pi.State[term.SpeciesA]
		cj := pj.State[term.SpeciesB]

		var q float64
		switch term.Kind {
		case Fick:
			q = term.Coef * w * (ci - cj)
		case Secrete:
			q = term.Coef * w * (ci - term.Target)
			if q < 0 {
				q = 0
			}
		case Uptake:
			q = term.Coef * w * (term.Target - cj) * ci
			if q < 0 {
				q = 0
			}
		}

		pi.Flux[term.SpeciesA] -= q + term.Decay*ci
		pj.Flux[term.SpeciesB] += q
	}
}

// Integrate applies one explicit-Euler sub-step of the accumulated flux
// deltas to a particle's concentrations and clears the accumulator.
// Constant species are skipped; concentrations clamp at zero so decay
// can never drive them negative within a sub-step.
func Integrate(p *part.Particle, species []part.Species, dt float64) {
	for s := range p.State {
		if species[s].Constant {
			p.Flux[s] = 0
			continue
		}
		c := p.State[s] + dt*p.Flux[s]
		if c < 0 {
			c = 0
		}
		p.State[s] = c
		p.Flux[s] = 0
	}
}
