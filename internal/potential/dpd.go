package potential

import (
	"math"

	"github.com/LNR1001/tissue-forge/internal/geom"
)

// DPDCoeffs are the term coefficients of a dissipative-particle-dynamics
// interaction: conservative strength, velocity-damping friction and
// stochastic noise amplitude.
type DPDCoeffs struct {
	Alpha float64
	Gamma float64
	Sigma float64
}

// EvalDPD computes the DPD force on particle i for separation dx = xi-xj
// and relative velocity dv = vi-vj. gauss is a unit normal sample drawn
// by the caller (one per pair per step); isqrtDT is 1/sqrt(dt), which
// scales the stochastic term so its integrated variance is independent
// of the step size. Returns the force to accumulate on i (j receives the
// negation) and the conservative energy.
func (p *Potential) EvalDPD(dx, dv geom.Vec3, r2 float64, isqrtDT, gauss float64) (geom.Vec3, float64) {
	if p.DPD == nil {
		return geom.Vec3{}, 0
	}
	r := math.Sqrt(r2)
	if r >= p.B || r <= 0 {
		return geom.Vec3{}, 0
	}

	w := 1 - r/p.B
	rhat := dx.Scale(1 / r)

	fc := p.DPD.Alpha * w
	fd := -p.DPD.Gamma * w * w * rhat.Dot(dv)
	fr := p.DPD.Sigma * w * gauss * isqrtDT

	e := 0.5 * p.DPD.Alpha * p.B * w * w
	return rhat.Scale(fc + fd + fr), e
}
