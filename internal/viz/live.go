package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
)

const (
	historyCapacity = 240
	defaultFPS      = 30
	tuneStep        = 0.05
)

type TickMsg time.Time

// tunable is one adjustable parameter, owned by either the controller or the
// plant.
type tunable struct {
	owner   dynamo.Configurable
	name    string
	initial float64
}

type resetter interface {
	Reset()
}

// Model steps a closed loop once per frame and renders it.
type Model struct {
	plant      dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller

	state        dynamo.State
	initialState dynamo.State
	u            dynamo.Control
	t, dt        float64
	fps          int

	running bool
	failed  bool
	name    string

	limits     [2]float64
	pvHistory  []float64
	spHistory  []float64
	outHistory []float64

	params   []tunable
	selected int
	showHelp bool
}

// NewModel builds a live view. Parameters of a Configurable controller come
// first in the tuning list, followed by those of a Configurable plant.
func NewModel(plant dynamo.System, integ dynamo.Integrator, ctrl dynamo.Controller, x0 dynamo.State, dt float64, name string) Model {
	m := Model{
		plant:        plant,
		integrator:   integ,
		controller:   ctrl,
		state:        x0.Clone(),
		initialState: x0.Clone(),
		u:            make(dynamo.Control, plant.ControlDim()),
		dt:           dt,
		fps:          defaultFPS,
		running:      true,
		name:         name,
		limits:       [2]float64{math.Inf(-1), math.Inf(1)},
		pvHistory:    make([]float64, 0, historyCapacity),
		spHistory:    make([]float64, 0, historyCapacity),
		outHistory:   make([]float64, 0, historyCapacity),
	}

	if fb := feedbackOf(ctrl); fb != nil {
		m.limits[0], m.limits[1] = fb.PID.OutputLimits()
	}
	if c, ok := ctrl.(dynamo.Configurable); ok {
		m.params = append(m.params, tunables(c)...)
	}
	if c, ok := plant.(dynamo.Configurable); ok {
		m.params = append(m.params, tunables(c)...)
	}
	return m
}

// feedbackOf finds the PID loop behind ctrl, looking through wrappers such
// as a setpoint schedule.
func feedbackOf(ctrl dynamo.Controller) *control.Feedback {
	for ctrl != nil {
		switch c := ctrl.(type) {
		case *control.Feedback:
			return c
		case interface{ Inner() dynamo.Controller }:
			ctrl = c.Inner()
		default:
			return nil
		}
	}
	return nil
}

func tunables(c dynamo.Configurable) []tunable {
	params := c.GetParams()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]tunable, 0, len(keys))
	for _, k := range keys {
		out = append(out, tunable{owner: c, name: k, initial: params[k]})
	}
	return out
}

// WithFPS sets the frame rate; one simulation step is taken per frame.
func (m Model) WithFPS(fps int) Model {
	if fps > 0 {
		m.fps = fps
	}
	return m
}

func (m Model) Time() float64       { return m.t }
func (m Model) State() dynamo.State { return m.state }
func (m Model) Running() bool       { return m.running }
func (m Model) History() []float64  { return m.pvHistory }

// Selected is the name of the parameter the tuning keys act on.
func (m Model) Selected() string {
	if len(m.params) == 0 {
		return ""
	}
	return m.params[m.selected].name
}

func (m Model) Param(name string) float64 {
	for _, p := range m.params {
		if p.name == name {
			return p.owner.GetParams()[name]
		}
	}
	return math.NaN()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.failed {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1)
		case "down", "j":
			m.adjustParam(-1)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) cycleParam() {
	if len(m.params) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.params)
}

// adjustParam moves the selected parameter by 5% of its magnitude, or by an
// absolute step when it is zero.
func (m *Model) adjustParam(dir float64) {
	if len(m.params) == 0 {
		return
	}
	p := m.params[m.selected]
	val := p.owner.GetParams()[p.name]
	step := math.Abs(val) * tuneStep
	if step == 0 {
		step = tuneStep
	}
	// Rejected values (e.g. a non-positive mass) leave the parameter as is.
	_ = p.owner.SetParam(p.name, val+dir*step)
}

func (m *Model) step() {
	m.u = m.controller.Compute(m.state, m.t)

	m.record(m.state[0], m.setpoint(), m.u[0])

	m.state = m.integrator.Step(m.plant, m.state, m.u, m.t, m.dt)
	m.t += m.dt

	if !m.state.IsValid() {
		m.running = false
		m.failed = true
	}
}

func (m *Model) record(pv, sp, out float64) {
	m.pvHistory = appendBounded(m.pvHistory, pv)
	m.spHistory = appendBounded(m.spHistory, sp)
	m.outHistory = appendBounded(m.outHistory, out)
}

func appendBounded(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[1:]
	}
	return h
}

func (m *Model) setpoint() float64 {
	if tr, ok := m.controller.(dynamo.Tracker); ok {
		return tr.Setpoint()
	}
	return math.NaN()
}

// reset restores the initial state and parameters and puts the controller
// back into its awaiting-first-sample phase.
func (m *Model) reset() {
	m.t = 0
	m.state = m.initialState.Clone()
	m.u = make(dynamo.Control, m.plant.ControlDim())
	m.pvHistory = m.pvHistory[:0]
	m.spHistory = m.spHistory[:0]
	m.outHistory = m.outHistory[:0]
	m.failed = false
	m.running = true
	for _, p := range m.params {
		_ = p.owner.SetParam(p.name, p.initial)
	}
	if r, ok := m.controller.(resetter); ok {
		r.Reset()
	}
}

func (m Model) View() string {
	var s strings.Builder

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.failed:
		status = StatusFailed.Render("DIVERGED")
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.name)) + "  " + status + "\n\n")

	if len(m.pvHistory) > 1 {
		data := [][]float64{m.pvHistory}
		if !math.IsNaN(m.spHistory[0]) {
			data = append(data, m.spHistory)
		}
		chart := asciigraph.PlotMany(data,
			asciigraph.Height(8),
			asciigraph.Width(50),
			asciigraph.SeriesColors(asciigraph.Cyan, asciigraph.Yellow),
			asciigraph.Caption("process value"),
		)
		s.WriteString(chart + "\n\n")
		out := asciigraph.Plot(m.outHistory,
			asciigraph.Height(4),
			asciigraph.Width(50),
			asciigraph.SeriesColors(asciigraph.Green),
			asciigraph.Caption("output"),
		)
		s.WriteString(out + "\n")
	}

	stats := m.renderStats()
	view := lipgloss.JoinHorizontal(lipgloss.Top, s.String(), Panel.Render(stats))
	if m.showHelp {
		return Panel.Render(helpText) + "\n" + view
	}
	return view
}

func (m Model) renderStats() string {
	var s strings.Builder

	s.WriteString(Metric("Time", fmt.Sprintf("%.2fs", m.t)) + "\n")
	s.WriteString(Metric("PV", fmt.Sprintf("%.3f", m.state[0])) + "\n")
	if sp := m.setpoint(); !math.IsNaN(sp) {
		s.WriteString(Metric("Setpoint", fmt.Sprintf("%.3f", sp)) + "\n")
	}
	s.WriteString(Metric("Output", fmt.Sprintf("%.3f", m.u[0])) + "\n")
	if lo, hi := m.limits[0], m.limits[1]; !math.IsInf(lo, 0) && !math.IsInf(hi, 0) && hi > lo {
		s.WriteString(MetricLabel.Render("") + ProgressBar((m.u[0]-lo)/(hi-lo), 20) + "\n")
	}
	if fb := feedbackOf(m.controller); fb != nil {
		terms := fb.PID.Terms()
		s.WriteString(Metric("P/I/D", fmt.Sprintf("%.2f / %.2f / %.2f", terms.P, terms.I, terms.D)) + "\n")
	}

	s.WriteString("\nPARAMETERS\n")
	if len(m.params) == 0 {
		s.WriteString(Subtle.Render("  (none)") + "\n")
	}
	for i, p := range m.params {
		line := fmt.Sprintf("%-10s %.4g", p.name, p.owner.GetParams()[p.name])
		if i == m.selected {
			s.WriteString(ActiveParam.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + Subtle.Render(line) + "\n")
		}
	}

	s.WriteString("\n" + Separator(30) + "\n")
	s.WriteString(KeyHint.Render("SP:Pause R:Reset Q:Quit\nTab:Next ↑↓:Tune ?:Help"))
	return s.String()
}

const helpText = `KEYBOARD SHORTCUTS

Space    Pause/Resume simulation
R        Reset state, controller and parameters
Q        Quit
Tab      Cycle parameters
Up/K     Increase parameter (+5%)
Down/J   Decrease parameter (-5%)
?        Toggle this help`

// Run starts the live view on the terminal and blocks until it exits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
