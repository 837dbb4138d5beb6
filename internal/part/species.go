package part

// Species describes one chemical species carried by a particle type.
type Species struct {
	Name string

	// Initial concentration assigned when a particle is created or when
	// a reset boundary reinitializes its state vector.
	Initial float64

	// Constant species are externally fixed; flux integration never
	// changes them.
	Constant bool
}

// StateVector is a particle's ordered array of species concentrations.
// The ordering matches the owning type's species list.
type StateVector []float64

func (s StateVector) Clone() StateVector {
	c := make(StateVector, len(s))
	copy(c, s)
	return c
}
