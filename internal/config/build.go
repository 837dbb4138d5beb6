package config

import (
	"fmt"
	"math/rand"

	"github.com/LNR1001/tissue-forge/internal/boundary"
	"github.com/LNR1001/tissue-forge/internal/engine"
	"github.com/LNR1001/tissue-forge/internal/flux"
	"github.com/LNR1001/tissue-forge/internal/geom"
	"github.com/LNR1001/tissue-forge/internal/part"
	"github.com/LNR1001/tissue-forge/internal/potential"
)

// Build validates the scenario and constructs an engine from it:
// boundary conditions, type table, interaction and flux matrices, and
// the initial particle placement. The engine is returned stopped; the
// caller decides the runner count.
func Build(cfg *Config) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bc := boundary.NewPeriodic()
	for face, f := range cfg.faces() {
		mode, err := parseMode(f.Mode)
		if err != nil {
			return nil, err
		}
		bc.Faces[face] = boundary.Face{
			Mode:     mode,
			Velocity: geom.Vec3(f.Velocity),
			Radius:   f.Radius,
		}
	}

	typeID := map[string]int32{}
	types := make([]part.Type, len(cfg.Types))
	for i, tc := range cfg.Types {
		dyn := part.Newtonian
		if tc.Dynamics == "overdamped" {
			dyn = part.Overdamped
		}
		species := make([]part.Species, len(tc.Species))
		for j, sc := range tc.Species {
			species[j] = part.Species{Name: sc.Name, Initial: sc.Initial, Constant: sc.Constant}
		}
		types[i] = part.Type{
			Name:     tc.Name,
			Mass:     tc.Mass,
			Radius:   tc.Radius,
			Dynamics: dyn,
			Species:  species,
		}
		typeID[tc.Name] = int32(i)
	}

	e, err := engine.New(engine.Options{
		Origin:      geom.Vec3(cfg.Domain.Origin),
		Dim:         geom.Vec3(cfg.Domain.Size),
		Cells:       cfg.Domain.Cells,
		Cutoff:      cfg.Cutoff,
		Dt:          cfg.Dt,
		NrFluxSteps: cfg.FluxSteps,
		Boundary:    bc,
		Types:       types,
		Backend:     cfg.Backend,
	})
	if err != nil {
		return nil, err
	}

	for i := range cfg.Potential {
		pc := &cfg.Potential[i]
		pot, err := buildPotential(pc, cfg.Cutoff)
		if err != nil {
			return nil, fmt.Errorf("potential %d: %w", i, err)
		}
		if pc.Wall != "" {
			tid := int32(-1)
			if pc.A != "" {
				tid = typeID[pc.A]
			}
			if err := e.AddWallPotential(faceIndex(pc.Wall), tid, pot); err != nil {
				return nil, fmt.Errorf("potential %d: %w", i, err)
			}
			continue
		}
		if err := e.AddPotential(typeID[pc.A], typeID[pc.B], pot); err != nil {
			return nil, fmt.Errorf("potential %d: %w", i, err)
		}
	}

	for i := range cfg.Fluxes {
		fc := &cfg.Fluxes[i]
		var kind flux.Kind
		switch fc.Kind {
		case "fick":
			kind = flux.Fick
		case "secrete":
			kind = flux.Secrete
		case "uptake":
			kind = flux.Uptake
		}
		term := flux.Term{Kind: kind, Coef: fc.Coef, Target: fc.Target, Decay: fc.Decay}
		if err := e.AddFlux(typeID[fc.A], typeID[fc.B], fc.SpeciesA, fc.SpeciesB, term); err != nil {
			return nil, fmt.Errorf("flux %d: %w", i, err)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	for i, tc := range cfg.Types {
		for n := 0; n < tc.Count; n++ {
			var pos geom.Vec3
			for k := 0; k < 3; k++ {
				pos[k] = cfg.Domain.Origin[k] + rng.Float64()*cfg.Domain.Size[k]
			}
			if _, err := e.AddParticle(int32(i), pos, geom.Vec3{}); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func buildPotential(pc *PotentialConfig, cutoff float64) (*potential.Potential, error) {
	max := pc.Max
	if max <= 0 {
		max = cutoff
	}

	var (
		pot *potential.Potential
		err error
	)
	switch pc.Kind {
	case "harmonic":
		pot, err = potential.NewHarmonic(pc.K, pc.R0, pc.Min, max)
	case "morse":
		pot, err = potential.NewMorse(pc.Depth, pc.Width, pc.R0, pc.Min, max)
	case "well":
		pot, err = potential.NewLinearWell(pc.K, pc.Min, max)
	case "dpd":
		pot, err = potential.NewDPD(pc.Alpha, pc.Gamma, pc.Sigma, max)
	}
	if err != nil {
		return nil, err
	}

	if pc.Shifted {
		pot.Flags |= potential.FlagShifted
		pot.R0 = pc.R0
	}
	if pc.Scaled {
		pot.Flags |= potential.FlagScaled
	}
	return pot, nil
}

func parseMode(name string) (boundary.Mode, error) {
	switch name {
	case "", "periodic":
		return boundary.Periodic, nil
	case "free_slip":
		return boundary.FreeSlip, nil
	case "no_slip":
		return boundary.NoSlip, nil
	case "potential":
		return boundary.PotentialWall, nil
	case "reset":
		return boundary.Reset, nil
	}
	return 0, fmt.Errorf("config: unknown boundary mode %q", name)
}

func faceIndex(name string) int {
	for i, n := range faceNames {
		if n == name {
			return i
		}
	}
	return -1
}
