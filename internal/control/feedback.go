package control

import "github.com/san-kum/pidsim/internal/dynamo"

// Feedback closes a loop around one state component: x[Index] is the
// process value handed to the PID.
type Feedback struct {
	PID   *PID
	Index int
}

func NewFeedback(pid *PID, index int) *Feedback {
	return &Feedback{PID: pid, Index: index}
}

func (f *Feedback) Compute(x dynamo.State, t float64) dynamo.Control {
	if f.Index < 0 || f.Index >= len(x) {
		return dynamo.Control{0}
	}
	return dynamo.Control{f.PID.Compute(x[f.Index], t)}
}

func (f *Feedback) Setpoint() float64 {
	return f.PID.Setpoint()
}

func (f *Feedback) SetSetpoint(sp float64) {
	f.PID.SetSetpoint(sp)
}

func (f *Feedback) Reset() {
	f.PID.Reset()
}

func (f *Feedback) GetParams() map[string]float64 {
	return f.PID.GetParams()
}

func (f *Feedback) SetParam(name string, value float64) error {
	return f.PID.SetParam(name, value)
}
