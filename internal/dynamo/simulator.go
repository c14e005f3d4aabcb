package dynamo

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// MaxSteps bounds the number of control steps in one run. The history is
// allocated up front.
const MaxSteps = 10_000_000

// Simulator runs the closed loop: sample the plant, ask the controller for
// an output, apply it for one timestep, repeat.
type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
	logger     *zap.Logger
}

func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     zap.NewNop(),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	s.logger = l
}

func (s *Simulator) Controller() Controller { return s.controller }

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	result := &Result{
		States:    make([]State, 0, steps+1),
		Controls:  make([]Control, 0, steps),
		Times:     make([]float64, 0, steps+1),
		Setpoints: make([]float64, 0, steps+1),
		Metrics:   make(map[string]float64),
		Errors:    make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	s.logger.Debug("simulation started",
		zap.Int("steps", steps),
		zap.Float64("dt", cfg.Dt),
		zap.Float64s("x0", x0))

	x := x0.Clone()
	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, 0)
	result.Setpoints = append(result.Setpoints, s.setpoint())

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt
		u := s.controller.Compute(x, t)
		result.Setpoints[i] = s.setpoint()

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		newX := s.integrator.Step(s.dyn, x, u, t, cfg.Dt)

		if cfg.ValidateState && !newX.IsValid() {
			err := SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"}
			s.logger.Warn("simulation diverged", zap.Error(err))
			result.Errors = append(result.Errors, &SimulationError{Step: i, Time: t, State: newX, Wrapped: fmt.Errorf("%w: %s", ErrInvalidState, err)})
			break
		}

		x = newX
		result.StepsTaken++

		result.Controls = append(result.Controls, u)
		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, float64(i+1)*cfg.Dt)
		result.Setpoints = append(result.Setpoints, s.setpoint())
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.logger.Debug("simulation finished",
		zap.Int("steps_taken", result.StepsTaken),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// RunWithCallback steps the loop until the duration elapses or callback
// returns false.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 State, cfg Config, callback func(State, Control, float64) bool) error {
	if err := s.validate(x0, cfg); err != nil {
		return err
	}

	x := x0.Clone()
	for i := 0; i < cfg.Steps(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt
		u := s.controller.Compute(x, t)

		if !callback(x, u, t) {
			return nil
		}

		x = s.integrator.Step(s.dyn, x, u, t, cfg.Dt)

		if cfg.ValidateState && !x.IsValid() {
			return fmt.Errorf("%w at t=%.4f", ErrInvalidState, t+cfg.Dt)
		}
	}

	return nil
}

func (s *Simulator) validate(x0 State, cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("%w: dt must be finite and positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if !(cfg.Duration > 0) || math.IsInf(cfg.Duration, 0) {
		return fmt.Errorf("%w: duration must be finite and positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	if steps := cfg.Duration / cfg.Dt; steps > MaxSteps {
		return fmt.Errorf("%w: %.0f steps exceeds the limit of %d", ErrInvalidConfig, steps, MaxSteps)
	}
	if len(x0) != s.dyn.StateDim() {
		return fmt.Errorf("%w: state has %d components, system wants %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}
	return nil
}

// setpoint returns the controller's setpoint, or 0 for open-loop controllers.
func (s *Simulator) setpoint() float64 {
	if tr, ok := s.controller.(Tracker); ok {
		return tr.Setpoint()
	}
	return 0
}
