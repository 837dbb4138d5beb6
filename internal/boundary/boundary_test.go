package boundary

import (
	"math"
	"math/rand"
	"testing"

	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
	"github.com/LNR1001/tissue-forge/internal/space"
)

func TestValidatePairing(t *testing.T) {
	bc := NewPeriodic()
	if err := bc.Validate(); err != nil {
		t.Fatalf("all-periodic should validate: %v", err)
	}

	bc.Faces[space.FaceLeft].Mode = FreeSlip
	if err := bc.Validate(); err == nil {
		t.Fatal("periodic paired with free-slip should fail")
	}

	bc.Faces[space.FaceRight].Mode = NoSlip
	if err := bc.Validate(); err != nil {
		t.Fatalf("two non-wrapping faces on one axis should validate: %v", err)
	}

	// Reset counts as wrapping and may pair with periodic.
	bc2 := NewPeriodic()
	bc2.Faces[space.FaceLeft].Mode = Reset
	if err := bc2.Validate(); err != nil {
		t.Fatalf("reset paired with periodic should validate: %v", err)
	}
}

func TestPeriodicMask(t *testing.T) {
	bc := NewPeriodic()
	if bc.PeriodicMask() != space.PeriodicFull {
		t.Error("all-periodic should wrap every axis")
	}

	bc.Faces[space.FaceBottom].Mode = FreeSlip
	bc.Faces[space.FaceTop].Mode = FreeSlip
	if bc.PeriodicMask() != space.PeriodicX|space.PeriodicY {
		t.Errorf("mask %b, want x|y", bc.PeriodicMask())
	}
}

func TestApplyKinematicsWrap(t *testing.T) {
	bc := NewPeriodic()
	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}
	typeOf := func(int32) *part.Type { return nil }

	p := &part.Particle{Position: geom.Vec3{10.5, -0.25, 5}}
	bc.ApplyKinematics(p, typeOf, origin, dim)

	if math.Abs(p.Position[0]-0.5) > 1e-12 {
		t.Errorf("x %g, want 0.5", p.Position[0])
	}
	if math.Abs(p.Position[1]-9.75) > 1e-12 {
		t.Errorf("y %g, want 9.75", p.Position[1])
	}
}

func TestApplyKinematicsFreeSlip(t *testing.T) {
	bc := NewPeriodic()
	bc.Faces[space.FaceLeft].Mode = FreeSlip
	bc.Faces[space.FaceRight].Mode = FreeSlip
	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}
	typeOf := func(int32) *part.Type { return nil }

	p := &part.Particle{
		Position: geom.Vec3{-0.5, 5, 5},
		Velocity: geom.Vec3{-2, 3, 0},
		Force:    geom.Vec3{-1, 1, 0},
	}
	bc.ApplyKinematics(p, typeOf, origin, dim)

	if math.Abs(p.Position[0]-0.5) > 1e-12 {
		t.Errorf("reflected x %g, want 0.5", p.Position[0])
	}
	if p.Velocity[0] != 2 {
		t.Errorf("normal velocity %g, want reversed", p.Velocity[0])
	}
	if p.Velocity[1] != 3 {
		t.Errorf("tangential velocity %g, want untouched", p.Velocity[1])
	}
	if p.Force[0] != 1 {
		t.Errorf("normal force %g, want reversed", p.Force[0])
	}
}

func TestApplyKinematicsNoSlip(t *testing.T) {
	bc := NewPeriodic()
	bc.Faces[space.FaceLeft].Mode = NoSlip
	bc.Faces[space.FaceRight].Mode = NoSlip
	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}
	typeOf := func(int32) *part.Type { return nil }

	p := &part.Particle{
		Position: geom.Vec3{-0.5, 5, 5},
		Velocity: geom.Vec3{-2, 3, 1},
	}
	bc.ApplyKinematics(p, typeOf, origin, dim)

	// No-slip reverses the full velocity, tangential included.
	want := geom.Vec3{2, -3, -1}
	if p.Velocity != want {
		t.Errorf("velocity %v, want %v", p.Velocity, want)
	}
}

func TestApplyKinematicsReset(t *testing.T) {
	bc := NewPeriodic()
	bc.Faces[space.FaceLeft].Mode = Reset
	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}

	typ := &part.Type{Species: []part.Species{{Name: "S1", Initial: 1.0}}}
	typeOf := func(int32) *part.Type { return typ }

	p := &part.Particle{
		Position: geom.Vec3{-0.5, 5, 5},
		State:    part.StateVector{0.2},
	}
	bc.ApplyKinematics(p, typeOf, origin, dim)

	if math.Abs(p.Position[0]-9.5) > 1e-12 {
		t.Errorf("x %g, want wrapped to 9.5", p.Position[0])
	}
	if p.State[0] != 1.0 {
		t.Errorf("state %g, want reset to initial 1.0", p.State[0])
	}

	// Crossing through an interior position leaves state alone.
	p2 := &part.Particle{Position: geom.Vec3{5, 5, 5}, State: part.StateVector{0.2}}
	bc.ApplyKinematics(p2, typeOf, origin, dim)
	if p2.State[0] != 0.2 {
		t.Error("interior particle state must not reset")
	}
}

func TestWallInteractRepels(t *testing.T) {
	bc := NewPeriodic()
	face := &bc.Faces[space.FaceBottom]
	face.Mode = PotentialWall

	// Negative slope: constant force away from the wall.
	pot, err := potential.NewLinearWell(-10, 0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	face.SetPotential(0, pot)

	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}
	rng := rand.New(rand.NewSource(1))

	p := &part.Particle{Position: geom.Vec3{5, 5, 0.4}}
	mask := uint8(1 << space.FaceBottom)
	bc.WallInteract(p, mask, origin, dim, 0.01, rng)

	if p.Force[2] <= 0 {
		t.Errorf("force %g, want repulsion away from bottom face", p.Force[2])
	}
	if p.Force[0] != 0 || p.Force[1] != 0 {
		t.Error("wall force must act along the face normal only")
	}

	// Out of the potential's range: no force.
	q := &part.Particle{Position: geom.Vec3{5, 5, 2.0}}
	bc.WallInteract(q, mask, origin, dim, 0.01, rng)
	if q.Force[2] != 0 {
		t.Errorf("force %g beyond wall range", q.Force[2])
	}

	// A type with no bound potential passes through freely.
	r := &part.Particle{Position: geom.Vec3{5, 5, 0.4}, TypeID: 1}
	bc.WallInteract(r, mask, origin, dim, 0.01, rng)
	if r.Force[2] != 0 {
		t.Error("unbound type must see no wall force")
	}
}

func TestWallInteractDPD(t *testing.T) {
	bc := NewPeriodic()
	face := &bc.Faces[space.FaceBottom]
	face.Mode = PotentialWall

	// Noise off so the expectation is closed-form: conservative push
	// plus friction opposing the approach.
	alpha, gamma := 25.0, 4.5
	pot, err := potential.NewDPD(alpha, gamma, 0, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	face.SetPotential(0, pot)

	origin, dim := geom.Vec3{}, geom.Vec3{10, 10, 10}
	rng := rand.New(rand.NewSource(1))

	p := &part.Particle{
		Position: geom.Vec3{5, 5, 0.4},
		Velocity: geom.Vec3{0, 0, -1},
	}
	epot := bc.WallInteract(p, uint8(1<<space.FaceBottom), origin, dim, 0.01, rng)

	w := 1 - 0.4
	wantF := alpha*w + gamma*w*w*1.0
	if math.Abs(p.Force[2]-wantF) > 1e-9 {
		t.Errorf("force %g, want %g", p.Force[2], wantF)
	}
	if p.Force[0] != 0 || p.Force[1] != 0 {
		t.Error("wall force must act along the face normal only")
	}

	wantE := 0.5 * alpha * w * w
	if math.Abs(epot-wantE) > 1e-9 {
		t.Errorf("epot %g, want %g", epot, wantE)
	}
}
