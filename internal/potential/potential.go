// Package potential implements tabulated interaction potentials: an
// arbitrary smooth pair potential is fit once into piecewise-polynomial
// coefficient tables, then evaluated in O(1) per call with no divisions
// on the hot path.
package potential

import (
	"math"

	"github.com/LNR1001/tissue-forge/internal/geom"
)

// Potential flags.
const (
	FlagNone uint32 = 0

	// FlagScaled evaluates at r/(ri+rj) instead of r.
	FlagScaled uint32 = 1 << 0

	// FlagShifted evaluates at r-(ri+rj)+R0 instead of r.
	FlagShifted uint32 = 1 << 1

	// FlagPeriodic marks a potential that wraps a periodic boundary; the
	// stored Offset is subtracted from the separation vector before the
	// distance is computed.
	FlagPeriodic uint32 = 1 << 2

	// FlagDPD marks a dissipative-particle-dynamics potential, evaluated
	// through EvalDPD rather than the table path.
	FlagDPD uint32 = 1 << 3

	// FlagBound marks a potential intended for cluster-internal pairs.
	FlagBound uint32 = 1 << 4
)

const (
	// degree of the interval polynomials.
	degree = 5

	// stride per interval: midpoint, inverse half-width, degree+1
	// Horner coefficients.
	stride = degree + 3
)

// Potential is an immutable piecewise-polynomial interaction table over
// [A, B]. Outside the domain it contributes exactly zero. Interval i
// occupies C[i*stride : (i+1)*stride] as {mi, hi, c5..c0} where
// x = (r-mi)*hi maps the interval onto [-1, 1].
type Potential struct {
	Flags uint32

	// Domain of definition.
	A, B float64

	// Number of intervals.
	N int

	// Index-map coefficients: interval index is approximately
	// Alpha[0] + r*(Alpha[1] + r*Alpha[2]), corrected by a short scan.
	Alpha [3]float64

	// Coefficient blocks, N*stride long.
	C []float64

	// Shift reference distance for FlagShifted.
	R0 float64

	// Periodic-image offset for FlagPeriodic.
	Offset geom.Vec3

	// DPD term coefficients, non-nil iff FlagDPD is set.
	DPD *DPDCoeffs
}

// Eval evaluates the potential at squared distance r2, returning the
// interaction energy and the force magnitude divided by r (so callers
// scale the raw separation vector without another square root).
// Out-of-domain distances contribute exactly zero.
func (p *Potential) Eval(r2 float64) (e, fOverR float64) {
	r := math.Sqrt(r2)
	if r < p.A || r > p.B || p.N == 0 {
		return 0, 0
	}

	ind := int(p.Alpha[0] + r*(p.Alpha[1]+r*p.Alpha[2]))
	if ind < 0 {
		ind = 0
	} else if ind >= p.N {
		ind = p.N - 1
	}

	// The quadratic map lands within one interval of the right segment;
	// scan to the exact one.
	c := p.C[ind*stride:]
	x := (r - c[0]) * c[1]
	for x < -1 && ind > 0 {
		ind--
		c = p.C[ind*stride:]
		x = (r - c[0]) * c[1]
	}
	for x > 1 && ind < p.N-1 {
		ind++
		c = p.C[ind*stride:]
		x = (r - c[0]) * c[1]
	}
	// Zero separation and rounding at the edges clamp rather than
	// extrapolate; overlap is a legitimate transient state.
	if x < -1 {
		x = -1
	} else if x > 1 {
		x = 1
	}

	// Horner over the fixed number of terms, accumulating the
	// derivative alongside the value.
	ee := c[2]*x + c[3]
	eff := c[2]
	for k := 4; k < stride; k++ {
		eff = eff*x + ee
		ee = ee*x + c[k]
	}

	// d/dr = d/dx * hi; fold in the 1/r the caller needs.
	return ee, eff * c[1] / r
}

// EvalShifted applies the radius modifiers before table lookup: scaled
// potentials interact in units of the combined radius, shifted ones in
// surface separation.
func (p *Potential) EvalShifted(r2, ri, rj float64) (e, fOverR float64) {
	switch {
	case p.Flags&FlagScaled != 0:
		rr := ri + rj
		if rr <= 0 {
			return 0, 0
		}
		e, f := p.Eval(r2 / (rr * rr))
		return e, f / (rr * rr)
	case p.Flags&FlagShifted != 0:
		r := math.Sqrt(r2)
		rs := r - (ri + rj) + p.R0
		if rs < 0 {
			rs = 0
		}
		e, f := p.Eval(rs * rs)
		if r > 0 {
			// The derivative is taken at the shifted distance but acts
			// along the true separation.
			f = f * rs / r
		}
		return e, f
	default:
		return p.Eval(r2)
	}
}

// ApplyImage subtracts the stored periodic-image offset from a raw
// separation vector and returns the adjusted vector and its squared
// length. No-op for potentials without FlagPeriodic.
func (p *Potential) ApplyImage(dx geom.Vec3) (geom.Vec3, float64) {
	if p.Flags&FlagPeriodic == 0 {
		return dx, dx.Norm2()
	}
	adj := dx.Sub(p.Offset)
	return adj, adj.Norm2()
}
