package potential

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// samples per interval when fitting; more than degree+1 so the fit is a
// least-squares smoothing rather than strict interpolation.
const fitSamples = 2 * (degree + 1)

// FromFunction tabulates an arbitrary smooth potential f over [a, b]
// into n piecewise polynomial intervals. Interval edges are spaced
// quadratically so resolution concentrates near a, where pair potentials
// vary fastest; the index-map coefficients are calibrated against the
// resulting edges.
func FromFunction(f func(r float64) float64, a, b float64, n int, flags uint32) (*Potential, error) {
	if b <= a {
		return nil, fmt.Errorf("potential: bad domain [%g, %g]", a, b)
	}
	if n < 1 {
		return nil, fmt.Errorf("potential: need at least one interval, got %d", n)
	}

	p := &Potential{
		Flags: flags,
		A:     a,
		B:     b,
		N:     n,
		C:     make([]float64, n*stride),
	}

	edges := intervalEdges(a, b, n)

	for i := 0; i < n; i++ {
		lo, hi := edges[i], edges[i+1]
		mi := 0.5 * (lo + hi)
		hw := 0.5 * (hi - lo)
		c := p.C[i*stride:]
		c[0] = mi
		c[1] = 1 / hw
		if err := fitInterval(f, mi, hw, c[2:stride]); err != nil {
			return nil, err
		}
	}

	p.Alpha = calibrateIndexMap(edges)
	return p, nil
}

// intervalEdges places n+1 edges over [a, b], quadratically denser near
// a. The map r(u) = a + (b-a)*u*(2-u)... is kept monotone by using
// u^gamma with gamma > 1 on the inverted axis.
func intervalEdges(a, b float64, n int) []float64 {
	edges := make([]float64, n+1)
	for i := 0; i <= n; i++ {
		u := float64(i) / float64(n)
		// u^1.5 concentrates edges toward a while staying monotone.
		edges[i] = a + (b-a)*math.Pow(u, 1.5)
	}
	edges[0], edges[n] = a, b
	return edges
}

// fitInterval least-squares fits a degree-5 polynomial in the scaled
// variable x = (r-mi)/hw over [-1, 1], writing Horner coefficients
// highest order first into dst (length degree+1).
func fitInterval(f func(r float64) float64, mi, hw float64, dst []float64) error {
	var (
		v = mat.NewDense(fitSamples, degree+1, nil)
		y = mat.NewVecDense(fitSamples, nil)
	)
	for s := 0; s < fitSamples; s++ {
		// Chebyshev nodes avoid endpoint oscillation.
		x := math.Cos(math.Pi * (float64(s) + 0.5) / fitSamples)
		pow := 1.0
		for k := degree; k >= 0; k-- {
			v.Set(s, k, pow)
			pow *= x
		}
		y.SetVec(s, f(mi+hw*x))
	}

	var qr mat.QR
	qr.Factorize(v)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, y); err != nil {
		return fmt.Errorf("potential: interval fit failed: %w", err)
	}
	for k := 0; k <= degree; k++ {
		dst[k] = coef.AtVec(k)
	}
	return nil
}

// calibrateIndexMap least-squares fits index ≈ α0 + r(α1 + r α2) through
// the interval edges, so a lookup lands in (or within one interval of)
// the correct segment without a division.
func calibrateIndexMap(edges []float64) [3]float64 {
	n := len(edges)
	v := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i, r := range edges {
		v.Set(i, 0, 1)
		v.Set(i, 1, r)
		v.Set(i, 2, r*r)
		// Edge i sits between intervals i-1 and i; target the midpoint
		// of the index it opens.
		y.SetVec(i, float64(i))
	}

	var qr mat.QR
	qr.Factorize(v)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, y); err != nil {
		// A degenerate fit never happens for monotone edges, but a
		// linear fallback keeps lookups valid regardless.
		w := edges[len(edges)-1] - edges[0]
		return [3]float64{-edges[0] * float64(n-1) / w, float64(n-1) / w, 0}
	}
	return [3]float64{coef.AtVec(0), coef.AtVec(1), coef.AtVec(2)}
}
