package part

// Dynamics selects how the canonical integrator advances particles of a
// type: Newtonian velocity updates or overdamped position updates.
type Dynamics int

const (
	Newtonian Dynamics = iota
	Overdamped
)

// Type is a particle type definition. The engine indexes its potential
// and flux matrices by pairs of type IDs.
type Type struct {
	ID     int32
	Name   string
	Mass   float64
	Radius float64

	Dynamics Dynamics

	// Species declared for this type, in state-vector order. May be nil
	// for types without chemical state.
	Species []Species

	// Number of live particles of this type.
	Count int
}

// InitialState builds a fresh state vector with the type's declared
// initial concentrations.
func (t *Type) InitialState() StateVector {
	if len(t.Species) == 0 {
		return nil
	}
	s := make(StateVector, len(t.Species))
	for i, sp := range t.Species {
		s[i] = sp.Initial
	}
	return s
}

// SpeciesIndex returns the state-vector index of the named species, or
// -1 if the type does not declare it.
func (t *Type) SpeciesIndex(name string) int {
	for i, sp := range t.Species {
		if sp.Name == name {
			return i
		}
	}
	return -1
}
