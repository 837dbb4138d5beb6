// Package geom provides the small geometric primitives shared by the
// spatial grid and the evaluators: 3-vectors and lattice arithmetic.
package geom

import "math"

// Vec3 is a cartesian 3-vector.
type Vec3 [3]float64

func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(w Vec3) float64 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }

// Norm2 returns the squared euclidean length.
func (v Vec3) Norm2() float64 { return v.Dot(v) }

func (v Vec3) Norm() float64 { return math.Sqrt(v.Norm2()) }

// PMod computes the positive modulo x % y.
func PMod(x, y int) int {
	m := x % y
	if m < 0 {
		m += y
	}
	return m
}

// Wrap maps x into [0, w) by adding or subtracting whole periods.
func Wrap(x, w float64) float64 {
	x = math.Mod(x, w)
	if x < 0 {
		x += w
	}
	return x
}
