package control

import "github.com/san-kum/pidsim/internal/dynamo"

// Manual holds the output at a fixed value. Used as the open-loop baseline
// when comparing against a closed loop; Target is only the reference line
// recorded alongside the run.
type Manual struct {
	Output float64
	Target float64
}

func NewManual(output, target float64) *Manual {
	return &Manual{Output: output, Target: target}
}

func (m *Manual) Setpoint() float64 {
	return m.Target
}

func (m *Manual) SetSetpoint(sp float64) {
	m.Target = sp
}

// SetOutput changes the held output.
func (m *Manual) SetOutput(u float64) {
	m.Output = u
}

func (m *Manual) Compute(x dynamo.State, t float64) dynamo.Control {
	return dynamo.Control{m.Output}
}

func (m *Manual) GetParams() map[string]float64 {
	return map[string]float64{"output": m.Output}
}

func (m *Manual) SetParam(name string, value float64) error {
	if name != "output" {
		return ErrUnknownParam
	}
	m.Output = value
	return nil
}
