package potential

import (
	"fmt"
	"math"
)

// defaultIntervals is the table resolution for the stock builders. High
// enough that the interval polynomials track smooth potentials to well
// below typical force tolerances.
const defaultIntervals = 256

// NewHarmonic builds a harmonic spring potential
// U(r) = k*(r-r0)^2 over [min, max].
func NewHarmonic(k, r0, min, max float64) (*Potential, error) {
	if k < 0 {
		return nil, fmt.Errorf("potential: harmonic spring constant must be >= 0, got %g", k)
	}
	return FromFunction(func(r float64) float64 {
		d := r - r0
		return k * d * d
	}, min, max, defaultIntervals, FlagNone)
}

// NewMorse builds a Morse potential
// U(r) = d*((1-exp(-a*(r-r0)))^2 - 1) over [min, max].
func NewMorse(d, a, r0, min, max float64) (*Potential, error) {
	return FromFunction(func(r float64) float64 {
		t := 1 - math.Exp(-a*(r-r0))
		return d * (t*t - 1)
	}, min, max, defaultIntervals, FlagNone)
}

// NewLinearWell builds U(r) = m*r over [min, max], a constant inward or
// outward force. Useful for wall potentials.
func NewLinearWell(m, min, max float64) (*Potential, error) {
	return FromFunction(func(r float64) float64 {
		return m * r
	}, min, max, defaultIntervals, FlagNone)
}

// NewDPD builds a dissipative-particle-dynamics potential with
// conservative strength alpha, friction gamma and noise sigma, active up
// to cutoff. The conservative branch is also tabulated so the energy
// accounting matches the table path.
func NewDPD(alpha, gamma, sigma, cutoff float64) (*Potential, error) {
	if cutoff <= 0 {
		return nil, fmt.Errorf("potential: dpd cutoff must be positive, got %g", cutoff)
	}
	p, err := FromFunction(func(r float64) float64 {
		w := 1 - r/cutoff
		return 0.5 * alpha * cutoff * w * w
	}, 0, cutoff, defaultIntervals, FlagDPD)
	if err != nil {
		return nil, err
	}
	p.DPD = &DPDCoeffs{Alpha: alpha, Gamma: gamma, Sigma: sigma}
	return p, nil
}
