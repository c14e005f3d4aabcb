package control

import (
	"fmt"
	"math"

	"github.com/benbjohnson/clock"
)

// PID is a discrete-time PID controller with output clamping and integral
// anti-windup.
//
// A PID is not safe for concurrent use. Every successful Compute reads and
// then writes the integral, the last error and the last timestamp, so callers
// sharing one instance across goroutines must serialize access themselves.
type PID struct {
	Kp float64
	Ki float64
	Kd float64

	setpoint float64
	outMin   float64
	outMax   float64

	integral float64
	lastErr  float64
	lastTime float64
	started  bool

	terms Terms
	clock clock.Clock
}

// Terms holds the contributions of the last successful step.
type Terms struct {
	P, I, D float64
}

// NewPID returns an unbounded controller.
func NewPID(kp, ki, kd, setpoint float64) *PID {
	return &PID{
		Kp:       kp,
		Ki:       ki,
		Kd:       kd,
		setpoint: setpoint,
		outMin:   math.Inf(-1),
		outMax:   math.Inf(1),
		clock:    clock.New(),
	}
}

// NewPIDWithLimits returns a controller whose output is clamped to [min, max].
func NewPIDWithLimits(kp, ki, kd, setpoint, min, max float64) (*PID, error) {
	p := NewPID(kp, ki, kd, setpoint)
	if err := p.SetOutputLimits(min, max); err != nil {
		return nil, err
	}
	return p, nil
}

// WithClock replaces the wall clock used by ComputeNow.
func (p *PID) WithClock(c clock.Clock) *PID {
	p.clock = c
	return p
}

// SetOutputLimits sets the output clamp. Limits are left unchanged on error.
func (p *PID) SetOutputLimits(min, max float64) error {
	if err := ValidateLimits(min, max); err != nil {
		return err
	}
	p.outMin, p.outMax = min, max
	return nil
}

// ValidateLimits reports whether [min, max] is a usable output range.
func ValidateLimits(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) {
		return fmt.Errorf("%w: NaN bound", ErrInvalidLimits)
	}
	if min > max {
		return fmt.Errorf("%w: min %g > max %g", ErrInvalidLimits, min, max)
	}
	return nil
}

func (p *PID) OutputLimits() (min, max float64) {
	return p.outMin, p.outMax
}

// SetSetpoint takes effect on the next Compute.
func (p *PID) SetSetpoint(sp float64) {
	p.setpoint = sp
}

func (p *PID) Setpoint() float64 {
	return p.setpoint
}

// Terms returns the P, I and D contributions of the last successful step.
func (p *PID) Terms() Terms {
	return p.terms
}

// Compute ingests one process value sampled at time t (seconds) and returns
// the clamped control output.
//
// The first call only records t and returns 0. A call whose t is not after
// the previous successful call returns 0 and leaves the controller untouched.
//
// With a negative Ki the anti-windup bounds swap sides, so the accumulator
// pins to outMin/Ki. On an unbounded controller that is +Inf, and every
// output after the first is +Inf.
func (p *PID) Compute(pv, t float64) float64 {
	if !p.started {
		p.lastTime = t
		p.started = true
		return 0
	}

	dt := t - p.lastTime
	if dt <= 0 {
		return 0
	}

	err := p.setpoint - pv

	prop := p.Kp * err

	p.integral += p.Ki * err * dt
	if p.Ki != 0 {
		p.integral = math.Max(math.Min(p.integral, p.outMax/p.Ki), p.outMin/p.Ki)
	} else {
		p.integral = 0
	}

	deriv := p.Kd * (err - p.lastErr) / dt

	out := clamp(prop+p.integral+deriv, p.outMin, p.outMax)

	p.terms = Terms{P: prop, I: p.integral, D: deriv}
	p.lastErr = err
	p.lastTime = t

	return out
}

// ComputeNow is Compute with t taken from the controller's clock as Unix
// seconds.
func (p *PID) ComputeNow(pv float64) float64 {
	now := p.clock.Now()
	return p.Compute(pv, float64(now.UnixNano())/1e9)
}

// Reset puts the controller back into its awaiting-first-sample phase.
// Gains, setpoint and limits are kept.
func (p *PID) Reset() {
	p.integral = 0
	p.lastErr = 0
	p.lastTime = 0
	p.started = false
	p.terms = Terms{}
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"kp":       p.Kp,
		"ki":       p.Ki,
		"kd":       p.Kd,
		"setpoint": p.setpoint,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "setpoint":
		p.setpoint = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(math.Min(v, hi), lo)
}
