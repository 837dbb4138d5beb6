package flux

// Matrix holds the flux descriptors per ordered type pair, laid out as
// a flat maxType*maxType table like the potential matrix.
type Matrix struct {
	maxType int
	cells   []*Fluxes
}

// NewMatrix allocates an empty descriptor matrix for maxType types.
func NewMatrix(maxType int) *Matrix {
	return &Matrix{
		maxType: maxType,
		cells:   make([]*Fluxes, maxType*maxType),
	}
}

// MaxType returns the matrix dimension.
func (m *Matrix) MaxType() int { return m.maxType }

// Get returns the descriptor for the ordered pair (i, j), or nil.
func (m *Matrix) Get(i, j int32) *Fluxes {
	return m.cells[int(i)*m.maxType+int(j)]
}

// Add appends a term for the ordered pair (i, j).
func (m *Matrix) Add(i, j int32, t Term) {
	idx := int(i)*m.maxType + int(j)
	if m.cells[idx] == nil {
		m.cells[idx] = &Fluxes{}
	}
	m.cells[idx].Terms = append(m.cells[idx].Terms, t)
}

// Empty reports whether no descriptor has been registered.
func (m *Matrix) Empty() bool {
	for _, f := range m.cells {
		if f != nil && len(f.Terms) > 0 {
			return false
		}
	}
	return true
}
