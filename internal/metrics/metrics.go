// Package metrics collects per-step diagnostics: energy traces, drift
// and stepping-rate measurements fed from engine samples.
package metrics

import "time"

// Sample is one step's observable state, captured by the driver after
// Step/Advance.
type Sample struct {
	Step        int64
	Time        float64
	Epot        float64
	Ekin        float64
	Temperature float64
	NrParts     int
	Wall        time.Duration
}

// Metric consumes samples and reduces them to one value.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Collector fans one sample out to a metric set.
type Collector struct {
	metrics []Metric
}

func NewCollector(ms ...Metric) *Collector {
	return &Collector{metrics: ms}
}

func (c *Collector) Add(m Metric) { c.metrics = append(c.metrics, m) }

func (c *Collector) Observe(s Sample) {
	for _, m := range c.metrics {
		m.Observe(s)
	}
}

func (c *Collector) Reset() {
	for _, m := range c.metrics {
		m.Reset()
	}
}

// Values returns the current value of every metric by name.
func (c *Collector) Values() map[string]float64 {
	out := make(map[string]float64, len(c.metrics))
	for _, m := range c.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
