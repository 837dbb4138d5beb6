package metrics

import "math"

// EnergyTrace records the total (kinetic plus potential) energy of every
// observed step, bounded to the most recent maxLen samples for plotting.
type EnergyTrace struct {
	name   string
	maxLen int
	series []float64
}

func NewEnergyTrace(maxLen int) *EnergyTrace {
	if maxLen <= 0 {
		maxLen = 512
	}
	return &EnergyTrace{name: "energy", maxLen: maxLen}
}

func (e *EnergyTrace) Name() string { return e.name }

func (e *EnergyTrace) Observe(s Sample) {
	e.series = append(e.series, s.Epot+s.Ekin)
	if len(e.series) > e.maxLen {
		e.series = e.series[1:]
	}
}

func (e *EnergyTrace) Value() float64 {
	if len(e.series) == 0 {
		return 0
	}
	return e.series[len(e.series)-1]
}

// Series returns the retained trace, oldest first.
func (e *EnergyTrace) Series() []float64 { return e.series }

func (e *EnergyTrace) Reset() { e.series = e.series[:0] }

// EnergyDrift tracks the maximum relative deviation of total energy
// from the first observed step.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s Sample) {
	total := s.Epot + s.Ekin
	if e.samples == 0 {
		e.initial = total
	}
	e.samples++
	if e.initial != 0 {
		drift := math.Abs(total-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
