package control

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/pidsim/internal/dynamo"
)

var ErrNotSchedulable = errors.New("control: controller has no settable setpoint")

// Change moves the setpoint to Setpoint once the loop reaches time At.
type Change struct {
	At       float64
	Setpoint float64
}

// SetpointController is a controller whose setpoint can be moved mid-run.
type SetpointController interface {
	dynamo.Controller
	SetSetpoint(sp float64)
}

// Scheduled applies a setpoint schedule to the controller it wraps. Changes
// due at or before t are applied before the wrapped controller computes, so
// a change takes effect on the sample at which it falls due.
type Scheduled struct {
	inner   SetpointController
	changes []Change
	initial float64
	next    int
}

// NewScheduled wraps ctrl. It fails with ErrNotSchedulable when ctrl has no
// SetSetpoint.
func NewScheduled(ctrl dynamo.Controller, changes []Change) (*Scheduled, error) {
	inner, ok := ctrl.(SetpointController)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotSchedulable, ctrl)
	}

	sorted := make([]Change, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At < sorted[j].At })

	s := &Scheduled{inner: inner, changes: sorted}
	if tr, ok := ctrl.(dynamo.Tracker); ok {
		s.initial = tr.Setpoint()
	}
	return s, nil
}

func (s *Scheduled) Compute(x dynamo.State, t float64) dynamo.Control {
	for s.next < len(s.changes) && s.changes[s.next].At <= t {
		s.inner.SetSetpoint(s.changes[s.next].Setpoint)
		s.next++
	}
	return s.inner.Compute(x, t)
}

func (s *Scheduled) Setpoint() float64 {
	if tr, ok := s.inner.(dynamo.Tracker); ok {
		return tr.Setpoint()
	}
	return s.initial
}

// Reset rewinds the schedule, restores the starting setpoint and resets the
// wrapped controller if it supports it.
func (s *Scheduled) Reset() {
	s.next = 0
	s.inner.SetSetpoint(s.initial)
	if r, ok := s.inner.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func (s *Scheduled) Inner() dynamo.Controller { return s.inner }

func (s *Scheduled) GetParams() map[string]float64 {
	if c, ok := s.inner.(dynamo.Configurable); ok {
		return c.GetParams()
	}
	return map[string]float64{}
}

func (s *Scheduled) SetParam(name string, value float64) error {
	if c, ok := s.inner.(dynamo.Configurable); ok {
		return c.SetParam(name, value)
	}
	return fmt.Errorf("%w: %s", ErrUnknownParam, name)
}
