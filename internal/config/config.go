// Package config defines the YAML scenario schema and turns a loaded
// scenario into a running engine.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt        = 0.005
	DefaultCutoff    = 1.0
	DefaultFluxSteps = 1
	DefaultDuration  = 10.0
)

type Config struct {
	Domain    DomainConfig      `yaml:"domain"`
	Cutoff    float64           `yaml:"cutoff"`
	Dt        float64           `yaml:"dt"`
	FluxSteps int               `yaml:"flux_steps"`
	Duration  float64           `yaml:"duration"`
	Seed      int64             `yaml:"seed"`
	Backend   string            `yaml:"backend"`
	Runners   int               `yaml:"runners"`
	Types     []TypeConfig      `yaml:"types"`
	Potential []PotentialConfig `yaml:"potentials"`
	Boundary  BoundaryConfig    `yaml:"boundaries"`
	Fluxes    []FluxConfig      `yaml:"fluxes"`
}

type DomainConfig struct {
	Origin [3]float64 `yaml:"origin"`
	Size   [3]float64 `yaml:"size"`
	Cells  [3]int     `yaml:"cells"`
}

type TypeConfig struct {
	Name     string          `yaml:"name"`
	Mass     float64         `yaml:"mass"`
	Radius   float64         `yaml:"radius"`
	Dynamics string          `yaml:"dynamics"`
	Count    int             `yaml:"count"`
	Species  []SpeciesConfig `yaml:"species"`
}

type SpeciesConfig struct {
	Name     string  `yaml:"name"`
	Initial  float64 `yaml:"initial"`
	Constant bool    `yaml:"constant"`
}

// PotentialConfig declares one bound interaction. Kind selects the
// parameter set: harmonic {k, r0}, morse {depth, width, r0}, well {k},
// dpd {alpha, gamma, sigma}; min/max bound the table domain, dpd uses
// max as its cutoff.
type PotentialConfig struct {
	A    string  `yaml:"a"`
	B    string  `yaml:"b"`
	Kind string  `yaml:"kind"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`

	K     float64 `yaml:"k"`
	R0    float64 `yaml:"r0"`
	Depth float64 `yaml:"depth"`
	Width float64 `yaml:"width"`

	Alpha float64 `yaml:"alpha"`
	Gamma float64 `yaml:"gamma"`
	Sigma float64 `yaml:"sigma"`

	Shifted bool `yaml:"shifted"`
	Scaled  bool `yaml:"scaled"`

	// Wall binds the potential to a boundary face instead of a type
	// pair; A names the particle type, B is ignored.
	Wall string `yaml:"wall"`
}

type BoundaryConfig struct {
	Left   FaceConfig `yaml:"left"`
	Right  FaceConfig `yaml:"right"`
	Front  FaceConfig `yaml:"front"`
	Back   FaceConfig `yaml:"back"`
	Bottom FaceConfig `yaml:"bottom"`
	Top    FaceConfig `yaml:"top"`
}

type FaceConfig struct {
	Mode     string     `yaml:"mode"`
	Velocity [3]float64 `yaml:"velocity"`
	Radius   float64    `yaml:"radius"`
}

type FluxConfig struct {
	A        string  `yaml:"a"`
	B        string  `yaml:"b"`
	SpeciesA string  `yaml:"species_a"`
	SpeciesB string  `yaml:"species_b"`
	Kind     string  `yaml:"kind"`
	Coef     float64 `yaml:"coef"`
	Target   float64 `yaml:"target"`
	Decay    float64 `yaml:"decay"`
}

func DefaultConfig() *Config {
	return &Config{
		Domain: DomainConfig{
			Size:  [3]float64{10, 10, 10},
			Cells: [3]int{10, 10, 10},
		},
		Cutoff:    DefaultCutoff,
		Dt:        DefaultDt,
		FluxSteps: DefaultFluxSteps,
		Duration:  DefaultDuration,
		Backend:   "auto",
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var faceNames = []string{"left", "right", "front", "back", "bottom", "top"}

func (c *Config) faces() [6]*FaceConfig {
	return [6]*FaceConfig{
		&c.Boundary.Left, &c.Boundary.Right,
		&c.Boundary.Front, &c.Boundary.Back,
		&c.Boundary.Bottom, &c.Boundary.Top,
	}
}

// Validate checks the scenario for internal consistency before any
// engine state is built.
func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", c.Dt)
	}
	if c.Cutoff <= 0 {
		return fmt.Errorf("config: cutoff must be positive, got %g", c.Cutoff)
	}
	if c.FluxSteps < 1 {
		return fmt.Errorf("config: flux_steps must be >= 1, got %d", c.FluxSteps)
	}
	for k := 0; k < 3; k++ {
		if c.Domain.Size[k] <= 0 {
			return fmt.Errorf("config: domain size must be positive on axis %d", k)
		}
		if c.Domain.Cells[k] < 1 {
			return fmt.Errorf("config: need at least one cell on axis %d", k)
		}
		if c.Domain.Size[k]/float64(c.Domain.Cells[k]) < c.Cutoff {
			return fmt.Errorf("config: cell edge below cutoff on axis %d", k)
		}
	}

	if len(c.Types) == 0 {
		return fmt.Errorf("config: at least one particle type required")
	}
	seen := map[string]bool{}
	for i, t := range c.Types {
		if t.Name == "" {
			return fmt.Errorf("config: type %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("config: duplicate type name %q", t.Name)
		}
		seen[t.Name] = true
		if t.Mass <= 0 {
			return fmt.Errorf("config: type %q mass must be positive", t.Name)
		}
		if t.Count < 0 {
			return fmt.Errorf("config: type %q count negative", t.Name)
		}
		switch t.Dynamics {
		case "", "newtonian", "overdamped":
		default:
			return fmt.Errorf("config: type %q has unknown dynamics %q", t.Name, t.Dynamics)
		}
		sp := map[string]bool{}
		for _, s := range t.Species {
			if s.Name == "" {
				return fmt.Errorf("config: type %q has unnamed species", t.Name)
			}
			if sp[s.Name] {
				return fmt.Errorf("config: type %q duplicates species %q", t.Name, s.Name)
			}
			sp[s.Name] = true
		}
	}

	for i, p := range c.Potential {
		switch p.Kind {
		case "harmonic", "morse", "well", "dpd":
		default:
			return fmt.Errorf("config: potential %d has unknown kind %q", i, p.Kind)
		}
		if p.Wall == "" {
			if !seen[p.A] || !seen[p.B] {
				return fmt.Errorf("config: potential %d references unknown type (%q, %q)", i, p.A, p.B)
			}
		} else {
			if !validFace(p.Wall) {
				return fmt.Errorf("config: potential %d references unknown face %q", i, p.Wall)
			}
			if p.A != "" && !seen[p.A] {
				return fmt.Errorf("config: potential %d references unknown type %q", i, p.A)
			}
		}
	}

	for face, f := range c.faces() {
		switch f.Mode {
		case "", "periodic", "free_slip", "no_slip", "potential", "reset":
		default:
			return fmt.Errorf("config: face %s has unknown mode %q", faceNames[face], f.Mode)
		}
	}

	for i, f := range c.Fluxes {
		if !seen[f.A] || !seen[f.B] {
			return fmt.Errorf("config: flux %d references unknown type (%q, %q)", i, f.A, f.B)
		}
		switch f.Kind {
		case "fick", "secrete", "uptake":
		default:
			return fmt.Errorf("config: flux %d has unknown kind %q", i, f.Kind)
		}
	}
	return nil
}

func validFace(name string) bool {
	for _, n := range faceNames {
		if n == name {
			return true
		}
	}
	return false
}
