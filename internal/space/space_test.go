package space

import (
	"math"
	"testing"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
)

func newTestSpace(t *testing.T, cells [3]int, periodic uint8) *Space {
	t.Helper()
	s, err := New(geom.Vec3{}, geom.Vec3{10, 10, 10}, cells, 1.0, periodic)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	dim := geom.Vec3{10, 10, 10}

	if _, err := New(geom.Vec3{}, dim, [3]int{10, 10, 10}, 0, PeriodicFull); err == nil {
		t.Error("zero cutoff should fail")
	}
	if _, err := New(geom.Vec3{}, dim, [3]int{20, 10, 10}, 1.0, PeriodicFull); err == nil {
		t.Error("cell edge below cutoff should fail")
	}
	if _, err := New(geom.Vec3{}, dim, [3]int{2, 10, 10}, 1.0, PeriodicFull); err == nil {
		t.Error("periodic axis with two cells should fail")
	}
	if _, err := New(geom.Vec3{}, dim, [3]int{2, 10, 10}, 1.0, PeriodicY|PeriodicZ); err != nil {
		t.Errorf("bounded axis with two cells should be fine: %v", err)
	}
}

func TestPairTopology(t *testing.T) {
	s := newTestSpace(t, [3]int{4, 4, 4}, PeriodicFull)

	// Fully periodic: every cell has 13 unique neighbor relations.
	want := 64 * 13
	if len(s.Pairs) != want {
		t.Errorf("periodic pairs: got %d, want %d", len(s.Pairs), want)
	}

	s2 := newTestSpace(t, [3]int{4, 4, 4}, PeriodicNone)
	if len(s2.Pairs) >= want {
		t.Errorf("bounded grid should drop edge pairs: %d >= %d", len(s2.Pairs), want)
	}
}

func TestCellOf(t *testing.T) {
	s := newTestSpace(t, [3]int{4, 4, 4}, PeriodicFull)

	if got := s.CellOf(geom.Vec3{0.1, 0.1, 0.1}); got != 0 {
		t.Errorf("origin corner: cell %d, want 0", got)
	}
	// Periodic wrap: a position one period out lands in the same cell.
	a := s.CellOf(geom.Vec3{3.0, 3.0, 3.0})
	b := s.CellOf(geom.Vec3{13.0, 3.0, 3.0})
	if a != b {
		t.Errorf("wrapped position: cell %d, want %d", b, a)
	}

	s2 := newTestSpace(t, [3]int{4, 4, 4}, PeriodicNone)
	// Bounded axes clamp out-of-domain positions to the edge cell.
	if got := s2.CellOf(geom.Vec3{-0.5, 1, 1}); got != s2.CellOf(geom.Vec3{0.1, 1, 1}) {
		t.Errorf("clamped position landed in cell %d", got)
	}
}

func TestInsertRemoveLookup(t *testing.T) {
	s := newTestSpace(t, [3]int{4, 4, 4}, PeriodicFull)

	s.Insert(part.Particle{ID: 0, Position: geom.Vec3{1, 1, 1}})
	s.Insert(part.Particle{ID: 1, Position: geom.Vec3{1.2, 1, 1}})
	s.Insert(part.Particle{ID: 2, Position: geom.Vec3{6, 6, 6}})

	if s.NrParts() != 3 {
		t.Fatalf("count %d, want 3", s.NrParts())
	}
	if p := s.Get(1); p == nil || p.ID != 1 {
		t.Fatal("lookup of id 1 failed")
	}

	// Removing from a shared cell swap-deletes; the survivor's lookup
	// entry must follow it.
	if _, err := s.Remove(0); err != nil {
		t.Fatal(err)
	}
	if p := s.Get(1); p == nil || p.ID != 1 {
		t.Fatal("lookup broken after swap-delete")
	}
	if p := s.Get(0); p != nil {
		t.Fatal("removed particle still resolvable")
	}
	if _, err := s.Remove(0); err == nil {
		t.Fatal("double remove should fail")
	}
}

func TestShuffleRelocates(t *testing.T) {
	s := newTestSpace(t, [3]int{4, 4, 4}, PeriodicFull)

	s.Insert(part.Particle{ID: 0, Position: geom.Vec3{1, 1, 1}})
	p := s.Get(0)
	p.Position = geom.Vec3{6, 1, 1}
	s.Shuffle()

	q := s.Get(0)
	if q == nil {
		t.Fatal("particle lost in shuffle")
	}
	if got := s.CellOf(q.Position); got != s.CellOf(geom.Vec3{6, 1, 1}) {
		t.Errorf("particle in cell %d after shuffle", got)
	}

	// Periodic wrap folds the coordinate back into the domain.
	q.Position = geom.Vec3{11, 1, 1}
	s.Shuffle()
	q = s.Get(0)
	if q.Position[0] < 0 || q.Position[0] >= 10 {
		t.Errorf("coordinate %g not wrapped into domain", q.Position[0])
	}
}

func TestVerletUpdate(t *testing.T) {
	// 2.0 cell edge against 1.0 cutoff leaves a 1.0 skin.
	s, err := New(geom.Vec3{}, geom.Vec3{10, 10, 10}, [3]int{5, 5, 5}, 1.0, PeriodicFull)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(s.Skin()-1.0) > 1e-12 {
		t.Fatalf("skin %g, want 1.0", s.Skin())
	}

	s.Insert(part.Particle{ID: 0, Position: geom.Vec3{1, 1, 1}})
	if !s.VerletUpdate() {
		t.Fatal("first update must rebuild (new particle)")
	}
	s.FinishRebuild()
	epoch := s.Epoch()

	// Displacement under half the skin: no rebuild.
	s.Get(0).Position = geom.Vec3{1.4, 1, 1}
	if s.VerletUpdate() {
		t.Error("displacement 0.4 under skin/2 triggered rebuild")
	}
	if s.Epoch() != epoch {
		t.Error("epoch advanced without rebuild")
	}

	// Crossing half the skin forces a new epoch.
	s.Get(0).Position = geom.Vec3{1.6, 1, 1}
	if !s.VerletUpdate() {
		t.Error("displacement 0.6 over skin/2 missed rebuild")
	}
	if s.Epoch() == epoch {
		t.Error("epoch should advance on rebuild")
	}
}

func TestBoundaryMask(t *testing.T) {
	s := newTestSpace(t, [3]int{4, 4, 4}, PeriodicNone)

	corner := &s.Cells[s.CellIdx(0, 0, 0)]
	if !corner.OnBoundary() {
		t.Fatal("corner cell should be on boundary")
	}
	for _, face := range []int{FaceLeft, FaceFront, FaceBottom} {
		if corner.BoundaryMask&(1<<face) == 0 {
			t.Errorf("corner missing face %d", face)
		}
	}

	inner := &s.Cells[s.CellIdx(1, 2, 1)]
	if inner.OnBoundary() {
		t.Error("interior cell flagged as boundary")
	}
}
