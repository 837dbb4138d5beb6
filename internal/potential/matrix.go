package potential

// Matrix is the symmetric interaction matrix: one potential per
// unordered pair of type ids, stored flat as maxType*maxType. Immutable
// once handed to the engine; refreshed by wholesale replacement.
type Matrix struct {
	maxType int
	cells   []*Potential
}

// NewMatrix allocates an empty interaction matrix for maxType types.
func NewMatrix(maxType int) *Matrix {
	return &Matrix{
		maxType: maxType,
		cells:   make([]*Potential, maxType*maxType),
	}
}

// MaxType returns the matrix dimension.
func (m *Matrix) MaxType() int { return m.maxType }

// Get returns the potential for a type pair, or nil.
func (m *Matrix) Get(i, j int32) *Potential {
	return m.cells[int(i)*m.maxType+int(j)]
}

// Set binds a potential to both orderings of a type pair.
func (m *Matrix) Set(i, j int32, p *Potential) {
	m.cells[int(i)*m.maxType+int(j)] = p
	m.cells[int(j)*m.maxType+int(i)] = p
}

// Empty reports whether no potential has been bound.
func (m *Matrix) Empty() bool {
	for _, p := range m.cells {
		if p != nil {
			return false
		}
	}
	return true
}
