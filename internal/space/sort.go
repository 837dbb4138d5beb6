package space

import (
	"math"

	"github.com/LNR1001/tissue-forge/internal/geom"
)

// The 13 unique undirected lattice directions: one representative per
// +/- pair of the 26 cell neighbors, chosen so the first nonzero
// component is positive.
var Directions = [13][3]int{
	{1, 0, 0}, {0, 1, 0}, {0, 0, 1},
	{1, 1, 0}, {1, -1, 0},
	{1, 0, 1}, {1, 0, -1},
	{0, 1, 1}, {0, 1, -1},
	{1, 1, 1}, {1, 1, -1}, {1, -1, 1}, {1, -1, -1},
}

const nrDirections = len(Directions)

// unitDirs are the normalized direction vectors.
var unitDirs = func() [nrDirections]geom.Vec3 {
	var u [nrDirections]geom.Vec3
	for d, dir := range Directions {
		v := geom.Vec3{float64(dir[0]), float64(dir[1]), float64(dir[2])}
		u[d] = v.Scale(1 / v.Norm())
	}
	return u
}()

// Sort keys are 16-bit fixed point packed above the particle index:
// key<<16 | index. The scale maps a cell diagonal onto the key range so
// projections never overflow while keeping maximal pruning resolution.
const (
	keyBits  = 16
	keyMax   = 1<<keyBits - 1
	idxMask  = 1<<16 - 1
	maxParts = idxMask + 1
)

// qscale returns the fixed-point scale for this grid's cells. The
// representable range spans three cell diagonals: one below the cell
// origin and two above, so projections along negative direction
// components and Verlet drift both stay in range without overflow.
func (s *Space) qscale() float64 {
	return float64(keyMax) / (3 * s.H.Norm())
}

// qoffset biases projections into the representable range; it is the
// same for both cells of a pair, so key differences are unaffected.
func (s *Space) qoffset() float64 {
	return s.H.Norm()
}

// SortCell builds the cell's sorted-neighbor lists for the current
// epoch, one descending quantized-projection order per direction. A
// no-op when the cell is already sorted for this epoch. Runs inside the
// cell's Sort task; the scheduler guarantees exclusive access.
func (s *Space) SortCell(ci int32) {
	c := &s.Cells[ci]
	if c.epoch == s.epoch {
		return
	}
	n := len(c.Parts)
	if n > maxParts {
		// The packed key layout caps cell occupancy.
		panic("space: cell particle count exceeds sort index capacity")
	}

	scale, offset := s.qscale(), s.qoffset()
	for d := 0; d < nrDirections; d++ {
		u := unitDirs[d]
		list := c.sorted[d][:0]
		for i := 0; i < n; i++ {
			proj := c.Parts[i].Position.Sub(c.Origin).Dot(u)
			q := int((proj + offset) * scale)
			if q < 0 {
				q = 0
			} else if q > keyMax {
				q = keyMax
			}
			list = append(list, uint32(q)<<16|uint32(i))
		}
		c.sorted[d] = bitonicSortDesc(list)
	}
	c.epoch = s.epoch
}

// Sorted returns the cell's descending sorted list for a direction.
// Valid only between two successive rebuilds.
func (c *Cell) Sorted(dir int) []uint32 { return c.sorted[dir] }

// bitonicSortDesc sorts packed keys in descending order with a bitonic
// network. The comparison pattern is fixed by the length alone, with no
// data-dependent branching, which keeps the work uniform when cells are
// sorted in parallel. The input is padded to a power of two with zero
// keys (the descending minimum); the returned slice has the original
// length and possibly grown capacity, so callers should keep it.
func bitonicSortDesc(a []uint32) []uint32 {
	n := len(a)
	if n < 2 {
		return a
	}
	size := 1
	for size < n {
		size <<= 1
	}
	for len(a) < size {
		a = append(a, 0)
	}
	for k := 2; k <= size; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			for i := 0; i < size; i++ {
				l := i ^ j
				if l <= i {
					continue
				}
				// Blocks alternate direction; the final merge leaves
				// the whole array descending.
				desc := i&k == 0
				if (a[i] < a[l]) == desc {
					a[i], a[l] = a[l], a[i]
				}
			}
		}
	}
	return a[:n]
}

// PairWalk enumerates candidate particle pairs between two sorted cells
// along their lattice direction, calling visit(i, j) for every pair
// whose axial separation is within cutoff plus skin. dshift is the
// distance between the two cell origins along the direction axis
// (including any periodic image offset). Walks both lists from the
// adjoining face inward and stops as soon as the quantized axial gap
// rules out the remainder.
func (s *Space) PairWalk(ci, cj int32, dir int, shift geom.Vec3, visit func(i, j int)) {
	a := s.Cells[ci].Sorted(dir)
	b := s.Cells[cj].Sorted(dir)
	if len(a) == 0 || len(b) == 0 {
		return
	}

	u := unitDirs[dir]
	origI := s.Cells[ci].Origin
	origJ := s.Cells[cj].Origin.Add(shift)
	dshift := origJ.Sub(origI).Dot(u)

	scale := s.qscale()
	// Axial threshold in quantized units, biased up by one key step so
	// quantization error can only admit candidates, never drop one.
	reach := s.Cutoff + math.Max(s.skin, 0)
	dq := int64((reach-dshift)*scale) + 1

	// a descending: front of the list faces cell j. b descending: its
	// tail faces cell i, so walk b backwards.
	for ai := 0; ai < len(a); ai++ {
		qi := int64(a[ai] >> 16)
		// The smallest projection in b is its tail key; once even that
		// is out of reach for this and all later (smaller) a-keys, no
		// candidates remain.
		if int64(b[len(b)-1]>>16)-qi > dq {
			break
		}
		i := int(a[ai] & idxMask)
		for bi := len(b) - 1; bi >= 0; bi-- {
			qj := int64(b[bi] >> 16)
			if qj-qi > dq {
				break
			}
			visit(i, int(b[bi]&idxMask))
		}
	}
}
