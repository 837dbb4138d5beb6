// Package tui is a live terminal monitor for a running engine: a
// projected particle view, energy sparkline and step statistics.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LNR1001/tissue-forge/internal/engine"
	"github.com/LNR1001/tissue-forge/internal/metrics"
)

var (
	cyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim    = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// density ramp from empty to crowded.
var densityChars = []rune{' ', '·', '∘', 'o', 'O', '●', '█'}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	eng      *engine.Engine
	maxSteps int64

	paused  bool
	speed   int
	stepErr error

	trace *metrics.EnergyTrace
	drift *metrics.EnergyDrift
	rate  *metrics.StepRate

	width  int
	height int
}

// NewLiveMonitor wraps an engine in a bubbletea model. maxSteps zero
// runs until quit.
func NewLiveMonitor(e *engine.Engine, maxSteps int64) *model {
	return &model{
		eng:      e,
		maxSteps: maxSteps,
		speed:    1,
		trace:    metrics.NewEnergyTrace(256),
		drift:    metrics.NewEnergyDrift(),
		rate:     metrics.NewStepRate(32),
		width:    80,
		height:   24,
	}
}

// RunLive drives the engine under a live terminal view until the step
// budget or the user quits.
func RunLive(e *engine.Engine, maxSteps int64) error {
	p := tea.NewProgram(NewLiveMonitor(e, maxSteps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+", "=":
			if m.speed < 64 {
				m.speed *= 2
			}
		case "-":
			if m.speed > 1 {
				m.speed /= 2
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.paused || m.stepErr != nil {
			return m, tick()
		}
		for i := 0; i < m.speed; i++ {
			if m.maxSteps > 0 && m.eng.StepCount() >= m.maxSteps {
				return m, tea.Quit
			}
			start := time.Now()
			epot, err := m.eng.Step()
			if err != nil {
				m.stepErr = err
				break
			}
			m.eng.Advance()
			s := metrics.Sample{
				Step:        m.eng.StepCount(),
				Time:        m.eng.Time(),
				Epot:        epot,
				Ekin:        m.eng.KineticEnergy(),
				Temperature: m.eng.Temperature(),
				NrParts:     m.eng.ParticleCount(),
				Wall:        time.Since(start),
			}
			m.trace.Observe(s)
			m.drift.Observe(s)
			m.rate.Observe(s)
		}
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n  " + cyan.Render("tissue-forge") + dim.Render("  live monitor") + "\n\n")

	cw, ch := m.width-6, m.height-12
	if cw > 100 {
		cw = 100
	}
	if ch < 4 {
		ch = 4
	}
	b.WriteString(m.renderDensity(cw, ch))

	b.WriteString(fmt.Sprintf("\n  %s %s   %s %s   %s %s\n",
		dim.Render("step"), white.Render(fmt.Sprintf("%d", m.eng.StepCount())),
		dim.Render("t"), white.Render(fmt.Sprintf("%.3f", m.eng.Time())),
		dim.Render("parts"), white.Render(fmt.Sprintf("%d", m.eng.ParticleCount()))))

	b.WriteString(fmt.Sprintf("  %s %s   %s %s   %s %s   %s %s\n",
		dim.Render("epot"), yellow.Render(fmt.Sprintf("%10.4f", m.eng.PotentialEnergy())),
		dim.Render("ekin"), yellow.Render(fmt.Sprintf("%10.4f", m.eng.KineticEnergy())),
		dim.Render("T"), yellow.Render(fmt.Sprintf("%.4f", m.eng.Temperature())),
		dim.Render("steps/s"), green.Render(fmt.Sprintf("%.1f", m.rate.Value()))))

	if spark := sparkline(m.trace.Series(), 40); spark != "" {
		b.WriteString(fmt.Sprintf("  %s %s  %s %s\n",
			dim.Render("energy"), cyan.Render(spark),
			dim.Render("drift"), white.Render(fmt.Sprintf("%.2e", m.drift.Value()))))
	}

	if m.stepErr != nil {
		b.WriteString("\n  " + red.Render("error: "+m.stepErr.Error()) + "\n")
	}

	status := "running"
	if m.paused {
		status = "paused"
	}
	b.WriteString("\n  " + dim.Render(fmt.Sprintf("%s x%d   space pause  ± speed  q quit", status, m.speed)) + "\n")
	return b.String()
}

// renderDensity projects the particles down the z axis onto a character
// grid, shading by column occupancy.
func (m model) renderDensity(w, h int) string {
	if w < 2 || h < 2 {
		return ""
	}
	counts := make([]int, w*h)
	sp := m.eng.Space()
	maxCount := 1
	for ci := range sp.Cells {
		parts := sp.Cells[ci].Parts
		for i := range parts {
			x := int((parts[i].Position[0] - sp.Origin[0]) / sp.Dim[0] * float64(w))
			y := int((parts[i].Position[1] - sp.Origin[1]) / sp.Dim[1] * float64(h))
			if x < 0 || x >= w || y < 0 || y >= h {
				continue
			}
			counts[y*w+x]++
			if counts[y*w+x] > maxCount {
				maxCount = counts[y*w+x]
			}
		}
	}

	var b strings.Builder
	for y := 0; y < h; y++ {
		b.WriteString("  ")
		for x := 0; x < w; x++ {
			idx := counts[y*w+x] * (len(densityChars) - 1) / maxCount
			b.WriteRune(densityChars[idx])
		}
		b.WriteByte('\n')
	}
	return dim.Render(b.String())
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}
