package metrics

import "time"

// StepRate reports steps per second over a rolling wall-clock window.
type StepRate struct {
	name   string
	window int
	walls  []time.Duration
}

func NewStepRate(window int) *StepRate {
	if window <= 0 {
		window = 32
	}
	return &StepRate{name: "steps_per_sec", window: window}
}

func (r *StepRate) Name() string { return r.name }

func (r *StepRate) Observe(s Sample) {
	if s.Wall <= 0 {
		return
	}
	r.walls = append(r.walls, s.Wall)
	if len(r.walls) > r.window {
		r.walls = r.walls[1:]
	}
}

func (r *StepRate) Value() float64 {
	if len(r.walls) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range r.walls {
		total += d
	}
	if total <= 0 {
		return 0
	}
	return float64(len(r.walls)) / total.Seconds()
}

func (r *StepRate) Reset() { r.walls = r.walls[:0] }

// PhaseTimer accumulates the wall time of one named step phase; drivers
// wrap backend calls and sub-step loops with Track.
type PhaseTimer struct {
	name  string
	total time.Duration
	count int
}

func NewPhaseTimer(name string) *PhaseTimer {
	return &PhaseTimer{name: name}
}

func (t *PhaseTimer) Name() string { return t.name }

// Track runs fn and adds its duration to the phase.
func (t *PhaseTimer) Track(fn func()) {
	start := time.Now()
	fn()
	t.total += time.Since(start)
	t.count++
}

// Observe folds a sample's wall time in, for timers fed externally.
func (t *PhaseTimer) Observe(s Sample) {
	t.total += s.Wall
	t.count++
}

// Value is the mean phase duration in seconds.
func (t *PhaseTimer) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.total.Seconds() / float64(t.count)
}

// Total is the accumulated phase time.
func (t *PhaseTimer) Total() time.Duration { return t.total }

func (t *PhaseTimer) Reset() {
	t.total = 0
	t.count = 0
}
