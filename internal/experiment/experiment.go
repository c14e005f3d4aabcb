package experiment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/metrics"
	"go.uber.org/zap"
)

var ErrNotSetup = errors.New("experiment: not setup")

// Experiment is one configured closed-loop run.
type Experiment struct {
	cfg        *config.Config
	plant      dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	simulator  *dynamo.Simulator
	logger     *zap.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{
		cfg:    cfg,
		logger: zap.NewNop(),
	}
}

func (e *Experiment) WithLogger(l *zap.Logger) *Experiment {
	if l != nil {
		e.logger = l
	}
	return e
}

// Setup validates the config and builds the plant, integrator, controller
// and metric set from the registry. Every call builds fresh instances.
func (e *Experiment) Setup(r *Registry) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	plant, err := r.GetPlant(e.cfg.Plant, e.cfg.PlantParams)
	if err != nil {
		return err
	}

	integ, err := r.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return err
	}

	min, max := e.cfg.OutputLimits()
	ctrl, err := r.GetController(e.cfg.Controller, e.cfg.ControllerParams, min, max)
	if err != nil {
		return fmt.Errorf("controller %s: %w", e.cfg.Controller, err)
	}

	if len(e.cfg.Schedule) > 0 {
		changes := make([]control.Change, len(e.cfg.Schedule))
		for i, ch := range e.cfg.Schedule {
			changes[i] = control.Change{At: ch.At, Setpoint: ch.Setpoint}
		}
		if ctrl, err = control.NewScheduled(ctrl, changes); err != nil {
			return fmt.Errorf("controller %s: %w", e.cfg.Controller, err)
		}
	}

	var target dynamo.Tracker = fixedTarget(e.cfg.ControllerParams.Setpoint)
	if tr, ok := ctrl.(dynamo.Tracker); ok {
		target = tr
	}

	e.plant = plant
	e.integrator = integ
	e.controller = ctrl
	e.simulator = dynamo.New(plant, integ, ctrl)
	e.simulator.SetLogger(e.logger.With(zap.String("plant", e.cfg.Plant), zap.String("controller", e.cfg.Controller)))
	for _, m := range metrics.Default(target, 0, min, max) {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	return e.simulator.Run(ctx, dynamo.State(e.cfg.GetInitState()), e.SimConfig())
}

func (e *Experiment) SimConfig() dynamo.Config {
	return simConfig(e.cfg)
}

func simConfig(cfg *config.Config) dynamo.Config {
	return dynamo.Config{
		Dt:            cfg.Dt,
		Duration:      cfg.Duration,
		ValidateState: true,
	}
}

func (e *Experiment) Config() *config.Config        { return e.cfg }
func (e *Experiment) Plant() dynamo.System          { return e.plant }
func (e *Experiment) Integrator() dynamo.Integrator { return e.integrator }
func (e *Experiment) Controller() dynamo.Controller { return e.controller }
func (e *Experiment) Simulator() *dynamo.Simulator  { return e.simulator }

// Gains is one kp, ki, kd set for Compare.
type Gains struct {
	Kp, Ki, Kd float64
}

func (g Gains) String() string {
	return fmt.Sprintf("kp=%g ki=%g kd=%g", g.Kp, g.Ki, g.Kd)
}

// ParseGains reads a "kp,ki,kd" triple.
func ParseGains(s string) (Gains, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Gains{}, fmt.Errorf("gains %q: want kp,ki,kd", s)
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Gains{}, fmt.Errorf("gains %q: %w", s, err)
		}
		vals[i] = v
	}
	return Gains{Kp: vals[0], Ki: vals[1], Kd: vals[2]}, nil
}

// Compare runs base once per gain set, in parallel. Each run gets its own
// plant, integrator and controller.
func Compare(ctx context.Context, r *Registry, base *config.Config, gains []Gains, logger *zap.Logger) ([]*dynamo.Result, error) {
	if len(gains) == 0 {
		return nil, fmt.Errorf("compare: no gain sets")
	}

	ens := dynamo.NewEnsemble()
	for _, g := range gains {
		cfg := base.Clone()
		cfg.ControllerParams.Kp = g.Kp
		cfg.ControllerParams.Ki = g.Ki
		cfg.ControllerParams.Kd = g.Kd

		exp := New(cfg).WithLogger(logger)
		if err := exp.Setup(r); err != nil {
			return nil, fmt.Errorf("%s: %w", g, err)
		}
		ens.Add(exp.Simulator())
	}

	return ens.Run(ctx, dynamo.State(base.GetInitState()), simConfig(base))
}

type fixedTarget float64

func (f fixedTarget) Setpoint() float64 { return float64(f) }
