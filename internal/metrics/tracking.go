package metrics

import (
	"math"

	"github.com/san-kum/pidsim/internal/dynamo"
	"gonum.org/v1/gonum/stat"
)

// IAE is the integral of absolute tracking error over the run.
type IAE struct {
	target dynamo.Tracker
	index  int
	sum    float64
	prevT  float64
	seen   bool
}

func NewIAE(target dynamo.Tracker, index int) *IAE {
	return &IAE{target: target, index: index}
}

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if m.index >= len(x) {
		return
	}
	if m.seen && t > m.prevT {
		m.sum += math.Abs(m.target.Setpoint()-x[m.index]) * (t - m.prevT)
	}
	m.prevT = t
	m.seen = true
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() {
	m.sum = 0
	m.prevT = 0
	m.seen = false
}

// Overshoot is the largest excursion past the setpoint, measured in the
// direction the process started out moving toward it.
type Overshoot struct {
	target    dynamo.Tracker
	index     int
	direction float64
	max       float64
}

func NewOvershoot(target dynamo.Tracker, index int) *Overshoot {
	return &Overshoot{target: target, index: index}
}

func (m *Overshoot) Name() string { return "overshoot" }

func (m *Overshoot) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if m.index >= len(x) {
		return
	}
	diff := x[m.index] - m.target.Setpoint()
	if m.direction == 0 {
		switch {
		case diff < 0:
			m.direction = 1
		case diff > 0:
			m.direction = -1
		}
		return
	}
	m.max = math.Max(m.max, diff*m.direction)
}

func (m *Overshoot) Value() float64 { return m.max }

func (m *Overshoot) Reset() {
	m.direction = 0
	m.max = 0
}

// SteadyState is the mean absolute tracking error over the tail of the run.
// Tail is the fraction of samples, counted from the end, that are averaged.
type SteadyState struct {
	target dynamo.Tracker
	index  int
	tail   float64
	errs   []float64
}

func NewSteadyState(target dynamo.Tracker, index int, tail float64) *SteadyState {
	if tail <= 0 || tail > 1 {
		tail = 0.2
	}
	return &SteadyState{target: target, index: index, tail: tail}
}

func (m *SteadyState) Name() string { return "steady_state_error" }

func (m *SteadyState) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if m.index >= len(x) {
		return
	}
	m.errs = append(m.errs, math.Abs(m.target.Setpoint()-x[m.index]))
}

func (m *SteadyState) Value() float64 {
	tail := m.window()
	if len(tail) == 0 {
		return 0
	}
	return stat.Mean(tail, nil)
}

func (m *SteadyState) window() []float64 {
	n := int(math.Ceil(float64(len(m.errs)) * m.tail))
	return m.errs[len(m.errs)-n:]
}

func (m *SteadyState) Reset() {
	m.errs = m.errs[:0]
}
