package space

import (
	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
)

// Boundary face indices and their cell-mask bits. Faces come in -/+
// pairs per axis: x-, x+, y-, y+, z-, z+.
const (
	FaceLeft = iota
	FaceRight
	FaceFront
	FaceBack
	FaceBottom
	FaceTop
	NumFaces
)

// FaceAxis maps a face index to its axis.
func FaceAxis(face int) int { return face / 2 }

// FacePositive reports whether the face is the +axis side.
func FacePositive(face int) bool { return face%2 == 1 }

// Cell is one fixed subdivision of the domain. It owns its particles in
// a contiguous slice; tasks touching a cell are serialized by the
// scheduler, so no locking happens here.
type Cell struct {
	ID     int32
	Loc    [3]int
	Origin geom.Vec3

	// BoundaryMask has bit face set when this cell touches that domain
	// face, so boundary enforcement only visits edge cells.
	BoundaryMask uint8

	Parts []part.Particle

	// Epot accumulates the potential energy of interactions owned by
	// this cell during the current step. Written only by the task that
	// holds the cell, summed by the backend after the barrier.
	Epot float64

	// sorted holds, per lattice direction, particle indices packed with
	// their quantized projection keys, descending. Valid while epoch
	// matches the space's sort epoch.
	sorted [nrDirections][]uint32
	epoch  uint64
}

// Count returns the number of particles in the cell.
func (c *Cell) Count() int { return len(c.Parts) }

// OnBoundary reports whether the cell touches any domain face.
func (c *Cell) OnBoundary() bool { return c.BoundaryMask != 0 }
