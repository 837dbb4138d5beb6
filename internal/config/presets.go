package config

import "sort"

// Presets are ready-to-run scenarios exercising the major interaction
// paths: a dissipative fluid, a reaction-diffusion soup and a bounded
// channel with potential walls.
var Presets = map[string]*Config{
	"dpd-fluid": {
		Domain:    DomainConfig{Size: [3]float64{10, 10, 10}, Cells: [3]int{10, 10, 10}},
		Cutoff:    1.0,
		Dt:        0.005,
		FluxSteps: 1,
		Duration:  10.0,
		Backend:   "auto",
		Types: []TypeConfig{
			{Name: "solvent", Mass: 1.0, Radius: 0.3, Count: 4000},
		},
		Potential: []PotentialConfig{
			{A: "solvent", B: "solvent", Kind: "dpd", Alpha: 25, Gamma: 4.5, Sigma: 3.0, Max: 1.0},
		},
	},
	"diffusion": {
		Domain:    DomainConfig{Size: [3]float64{8, 8, 8}, Cells: [3]int{8, 8, 8}},
		Cutoff:    1.0,
		Dt:        0.01,
		FluxSteps: 4,
		Duration:  20.0,
		Backend:   "cpu",
		Types: []TypeConfig{
			{
				Name: "producer", Mass: 1.0, Radius: 0.3, Count: 200, Dynamics: "overdamped",
				Species: []SpeciesConfig{{Name: "S1", Initial: 1.0, Constant: true}},
			},
			{
				Name: "medium", Mass: 1.0, Radius: 0.3, Count: 2000, Dynamics: "overdamped",
				Species: []SpeciesConfig{{Name: "S1", Initial: 0.0}},
			},
		},
		Fluxes: []FluxConfig{
			{A: "producer", B: "medium", SpeciesA: "S1", SpeciesB: "S1", Kind: "secrete", Coef: 0.5, Target: 0},
			{A: "medium", B: "medium", SpeciesA: "S1", SpeciesB: "S1", Kind: "fick", Coef: 1.0, Decay: 0.001},
		},
	},
	"channel": {
		Domain:    DomainConfig{Size: [3]float64{12, 6, 6}, Cells: [3]int{12, 6, 6}},
		Cutoff:    1.0,
		Dt:        0.005,
		FluxSteps: 1,
		Duration:  10.0,
		Backend:   "cpu",
		Types: []TypeConfig{
			{Name: "bead", Mass: 1.0, Radius: 0.25, Count: 1500},
		},
		Potential: []PotentialConfig{
			{A: "bead", B: "bead", Kind: "harmonic", K: 50, R0: 0.5, Min: 0.01, Max: 1.0},
			// Negative slope repels: the force points up the distance
			// gradient, away from the face.
			{Wall: "bottom", Kind: "well", K: -10, Min: 0, Max: 1.0},
			{Wall: "top", Kind: "well", K: -10, Min: 0, Max: 1.0},
		},
		Boundary: BoundaryConfig{
			Bottom: FaceConfig{Mode: "potential"},
			Top:    FaceConfig{Mode: "potential"},
		},
	},
}

func GetPreset(name string) *Config {
	return Presets[name]
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
