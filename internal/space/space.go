// Package space maintains the uniform-cell domain decomposition: the
// cell lattice, particle-to-cell assignment, the 13-direction neighbor
// topology and the sorted-neighbor index used to prune pair candidates.
package space

import (
	"fmt"
	"math"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
)

// Periodicity bitmask, one bit per axis.
const (
	PeriodicNone uint8 = 0
	PeriodicX    uint8 = 1 << 0
	PeriodicY    uint8 = 1 << 1
	PeriodicZ    uint8 = 1 << 2
	PeriodicFull uint8 = PeriodicX | PeriodicY | PeriodicZ
)

// Pair is one undirected neighbor-cell relationship. Shift is the
// periodic image offset to add to cell J positions when measuring
// against cell I.
type Pair struct {
	I, J  int32
	Dir   int
	Shift geom.Vec3
}

// Location addresses a particle inside the grid.
type Location struct {
	Cell  int32
	Index int32
}

// Space is the domain grid. Cells are fixed for the lifetime of a grid
// resolution; the grid is rebuilt only when domain size or cutoff
// change.
type Space struct {
	Origin geom.Vec3
	Dim    geom.Vec3

	// Cells per axis and cell edge lengths.
	NCells [3]int
	H      geom.Vec3
	ih     geom.Vec3

	Cutoff   float64
	Periodic uint8

	Cells []Cell

	// Static neighbor topology, one entry per unique cell pair.
	Pairs []Pair

	// lookup maps particle id to its current cell and slot. Grown on
	// demand; freed slots keep Cell == -1.
	lookup []Location

	// Potential energy accumulated by the current step's evaluation.
	Epot float64

	// Sorted-index bookkeeping. epoch increments on every shuffle and
	// invalidates all cell sort lists; skin is the slack between cell
	// edge and cutoff.
	epoch         uint64
	skin          float64
	rebuildNeeded bool
	nrParts       int
}

// New builds a grid over a box of the given dimensions with the
// requested cell counts. Every cell edge must be at least cutoff, and
// periodic axes need at least three cells so that wrapped neighbor
// relations stay unique.
func New(origin, dim geom.Vec3, cells [3]int, cutoff float64, periodic uint8) (*Space, error) {
	if cutoff <= 0 {
		return nil, fmt.Errorf("space: cutoff must be positive, got %g", cutoff)
	}
	for k := 0; k < 3; k++ {
		if cells[k] < 1 {
			return nil, fmt.Errorf("space: need at least one cell per axis, got %d on axis %d", cells[k], k)
		}
		if dim[k] <= 0 {
			return nil, fmt.Errorf("space: domain extent must be positive, got %g on axis %d", dim[k], k)
		}
		if dim[k]/float64(cells[k]) < cutoff {
			return nil, fmt.Errorf(
				"space: cell edge %g on axis %d below cutoff %g",
				dim[k]/float64(cells[k]), k, cutoff)
		}
		if periodic&(1<<k) != 0 && cells[k] < 3 {
			return nil, fmt.Errorf("space: periodic axis %d needs >= 3 cells, got %d", k, cells[k])
		}
	}

	s := &Space{
		Origin:        origin,
		Dim:           dim,
		NCells:        cells,
		Cutoff:        cutoff,
		Periodic:      periodic,
		epoch:         1,
		rebuildNeeded: true,
	}
	for k := 0; k < 3; k++ {
		s.H[k] = dim[k] / float64(cells[k])
		s.ih[k] = 1 / s.H[k]
	}
	s.skin = math.Min(s.H[0], math.Min(s.H[1], s.H[2])) - cutoff

	s.buildCells()
	s.buildPairs()
	return s, nil
}

func (s *Space) buildCells() {
	n := s.NCells[0] * s.NCells[1] * s.NCells[2]
	s.Cells = make([]Cell, n)
	for z := 0; z < s.NCells[2]; z++ {
		for y := 0; y < s.NCells[1]; y++ {
			for x := 0; x < s.NCells[0]; x++ {
				id := s.CellIdx(x, y, z)
				c := &s.Cells[id]
				c.ID = int32(id)
				c.Loc = [3]int{x, y, z}
				c.Origin = geom.Vec3{
					s.Origin[0] + float64(x)*s.H[0],
					s.Origin[1] + float64(y)*s.H[1],
					s.Origin[2] + float64(z)*s.H[2],
				}
				c.BoundaryMask = s.boundaryMask(x, y, z)
			}
		}
	}
}

// boundaryMask flags the domain faces a cell touches.
func (s *Space) boundaryMask(x, y, z int) uint8 {
	var m uint8
	loc := [3]int{x, y, z}
	for k := 0; k < 3; k++ {
		if loc[k] == 0 {
			m |= 1 << (2 * k)
		}
		if loc[k] == s.NCells[k]-1 {
			m |= 1 << (2*k + 1)
		}
	}
	return m
}

// buildPairs enumerates one Pair per unique neighbor relation using the
// 13 lattice directions, wrapping across periodic axes.
func (s *Space) buildPairs() {
	s.Pairs = s.Pairs[:0]
	for ci := range s.Cells {
		loc := s.Cells[ci].Loc
		for d, dir := range Directions {
			var (
				nb    [3]int
				shift geom.Vec3
				ok    = true
			)
			for k := 0; k < 3; k++ {
				nb[k] = loc[k] + dir[k]
				if nb[k] < 0 || nb[k] >= s.NCells[k] {
					if s.Periodic&(1<<k) == 0 {
						ok = false
						break
					}
					nb[k] = geom.PMod(nb[k], s.NCells[k])
					shift[k] = float64(dir[k]) * s.Dim[k]
				}
			}
			if !ok {
				continue
			}
			cj := s.CellIdx(nb[0], nb[1], nb[2])
			s.Pairs = append(s.Pairs, Pair{
				I:     int32(ci),
				J:     int32(cj),
				Dir:   d,
				Shift: shift,
			})
		}
	}
}

// CellIdx flattens lattice coordinates to a cell id.
func (s *Space) CellIdx(x, y, z int) int {
	return x + s.NCells[0]*(y+s.NCells[1]*z)
}

// CellOf returns the id of the cell containing a position. Positions on
// periodic axes are wrapped; on bounded axes they clamp to the edge
// cell, since particles may legitimately sit slightly past a face
// between boundary enforcement passes.
func (s *Space) CellOf(pos geom.Vec3) int {
	var loc [3]int
	for k := 0; k < 3; k++ {
		i := int(math.Floor((pos[k] - s.Origin[k]) * s.ih[k]))
		if s.Periodic&(1<<k) != 0 {
			i = geom.PMod(i, s.NCells[k])
		} else if i < 0 {
			i = 0
		} else if i >= s.NCells[k] {
			i = s.NCells[k] - 1
		}
		loc[k] = i
	}
	return s.CellIdx(loc[0], loc[1], loc[2])
}

// NrParts returns the number of particles in the grid.
func (s *Space) NrParts() int { return s.nrParts }

// Get returns a pointer to the particle with the given id, valid until
// the next insertion, removal or shuffle.
func (s *Space) Get(id int32) *part.Particle {
	if int(id) >= len(s.lookup) {
		return nil
	}
	loc := s.lookup[id]
	if loc.Cell < 0 {
		return nil
	}
	return &s.Cells[loc.Cell].Parts[loc.Index]
}

// Insert places a particle into the cell containing its position. The
// particle's id must be assigned by the caller.
func (s *Space) Insert(p part.Particle) {
	cid := s.CellOf(p.Position)
	c := &s.Cells[cid]
	p.X0 = p.Position
	c.Parts = append(c.Parts, p)
	s.setLookup(p.ID, Location{Cell: int32(cid), Index: int32(len(c.Parts) - 1)})
	s.nrParts++
	// A new particle has no sorted-index entry yet.
	s.rebuildNeeded = true
}

// Remove deletes the particle with the given id, returning its record.
func (s *Space) Remove(id int32) (part.Particle, error) {
	if int(id) >= len(s.lookup) || s.lookup[id].Cell < 0 {
		return part.Particle{}, fmt.Errorf("space: no particle with id %d", id)
	}
	loc := s.lookup[id]
	c := &s.Cells[loc.Cell]
	p := c.Parts[loc.Index]

	last := len(c.Parts) - 1
	if int(loc.Index) != last {
		c.Parts[loc.Index] = c.Parts[last]
		s.lookup[c.Parts[loc.Index].ID].Index = loc.Index
	}
	c.Parts = c.Parts[:last]
	s.lookup[id] = Location{Cell: -1}
	s.nrParts--
	s.rebuildNeeded = true
	return p, nil
}

func (s *Space) setLookup(id int32, loc Location) {
	for int(id) >= len(s.lookup) {
		s.lookup = append(s.lookup, Location{Cell: -1})
	}
	s.lookup[id] = loc
}

// Prepare zeroes all force and flux accumulators and the step energy.
func (s *Space) Prepare() {
	s.Epot = 0
	for ci := range s.Cells {
		s.Cells[ci].Epot = 0
		parts := s.Cells[ci].Parts
		for i := range parts {
			parts[i].ClearAccumulators()
		}
	}
}

// Shuffle relocates particles whose position left their cell, wrapping
// periodic coordinates into the domain. Particle identity is preserved.
func (s *Space) Shuffle() {
	for ci := range s.Cells {
		c := &s.Cells[ci]
		for i := 0; i < len(c.Parts); {
			p := &c.Parts[i]
			for k := 0; k < 3; k++ {
				if s.Periodic&(1<<k) != 0 {
					p.Position[k] = s.Origin[k] + geom.Wrap(p.Position[k]-s.Origin[k], s.Dim[k])
				}
			}
			target := s.CellOf(p.Position)
			if target == ci {
				i++
				continue
			}
			moved := *p
			last := len(c.Parts) - 1
			c.Parts[i] = c.Parts[last]
			c.Parts = c.Parts[:last]
			if i < len(c.Parts) {
				s.lookup[c.Parts[i].ID].Index = int32(i)
			}
			tc := &s.Cells[target]
			tc.Parts = append(tc.Parts, moved)
			s.setLookup(moved.ID, Location{Cell: int32(target), Index: int32(len(tc.Parts) - 1)})
		}
	}
}

// Rebuild re-grids everything into a new resolution, preserving every
// particle. O(particles).
func (s *Space) Rebuild(origin, dim geom.Vec3, cells [3]int, cutoff float64) error {
	ns, err := New(origin, dim, cells, cutoff, s.Periodic)
	if err != nil {
		return err
	}
	for ci := range s.Cells {
		for _, p := range s.Cells[ci].Parts {
			ns.Insert(p)
		}
	}
	*s = *ns
	return nil
}

// Skin returns the Verlet slack: the margin between the smallest cell
// edge and the cutoff.
func (s *Space) Skin() float64 { return s.skin }

// Epoch identifies the current sorted-index generation.
func (s *Space) Epoch() uint64 { return s.epoch }

// RebuildNeeded reports whether the sorted-neighbor index must be
// rebuilt before the next pair evaluation.
func (s *Space) RebuildNeeded() bool { return s.rebuildNeeded }

// VerletUpdate checks accumulated displacement against the skin and, if
// any particle moved more than half of it, shuffles the grid and opens a
// new sort epoch. Returns true when a rebuild was triggered.
func (s *Space) VerletUpdate() bool {
	if s.skin <= 0 {
		// No slack configured: every step re-grids and re-sorts.
		s.startEpoch()
		return true
	}
	if !s.rebuildNeeded {
		maxdx2 := 0.0
		for ci := range s.Cells {
			parts := s.Cells[ci].Parts
			for i := range parts {
				d2 := parts[i].Position.Sub(parts[i].X0).Norm2()
				if d2 > maxdx2 {
					maxdx2 = d2
				}
			}
		}
		if 2*math.Sqrt(maxdx2) <= s.skin {
			return false
		}
	}
	s.startEpoch()
	return true
}

// startEpoch shuffles, snapshots rebuild positions and invalidates all
// sorted lists.
func (s *Space) startEpoch() {
	s.Shuffle()
	for ci := range s.Cells {
		parts := s.Cells[ci].Parts
		for i := range parts {
			parts[i].X0 = parts[i].Position
		}
	}
	s.epoch++
	s.rebuildNeeded = true
}

// FinishRebuild marks the current epoch's sort lists as built. Called by
// the scheduler once all Sort tasks of a step have completed.
func (s *Space) FinishRebuild() { s.rebuildNeeded = false }
