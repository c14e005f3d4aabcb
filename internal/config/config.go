package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPlant      = "thermal"
	DefaultIntegrator = "euler"
	DefaultController = "pid"
	DefaultDt         = 0.5
	DefaultDuration   = 30.0
	DefaultInitial    = 20.0
	DefaultKp         = 2.0
	DefaultKi         = 0.1
	DefaultKd         = 0.5
	DefaultSetpoint   = 50.0
	DefaultOutputMin  = 0.0
	DefaultOutputMax  = 100.0
)

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	Plant            string             `yaml:"plant"`
	Integrator       string             `yaml:"integrator"`
	Controller       string             `yaml:"controller"`
	Dt               float64            `yaml:"dt"`
	Duration         float64            `yaml:"duration"`
	Initial          float64            `yaml:"initial"`
	PlantParams      map[string]float64 `yaml:"plant_params,omitempty"`
	ControllerParams ControllerConfig   `yaml:"controller_params"`
	Schedule         []SetpointChange   `yaml:"schedule,omitempty"`
}

// SetpointChange moves the setpoint to Setpoint at time At (seconds).
type SetpointChange struct {
	At       float64 `yaml:"at"`
	Setpoint float64 `yaml:"setpoint"`
}

// ControllerConfig holds the PID settings. A nil bound means unbounded on
// that side.
type ControllerConfig struct {
	Kp        float64  `yaml:"kp"`
	Ki        float64  `yaml:"ki"`
	Kd        float64  `yaml:"kd"`
	Setpoint  float64  `yaml:"setpoint"`
	OutputMin *float64 `yaml:"output_min,omitempty"`
	OutputMax *float64 `yaml:"output_max,omitempty"`
	// Output is the held value of the manual controller.
	Output float64 `yaml:"output,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Plant:      DefaultPlant,
		Integrator: DefaultIntegrator,
		Controller: DefaultController,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Initial:    DefaultInitial,
		ControllerParams: ControllerConfig{
			Kp:        DefaultKp,
			Ki:        DefaultKi,
			Kd:        DefaultKd,
			Setpoint:  DefaultSetpoint,
			OutputMin: Float(DefaultOutputMin),
			OutputMax: Float(DefaultOutputMax),
		},
	}
}

// Float returns a pointer to v, for filling optional bounds.
func Float(v float64) *float64 { return &v }

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects configurations that cannot be simulated. Misordered
// output limits are reported here rather than producing clamped garbage.
func (c *Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be finite and positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration must be finite and positive, got %g", ErrInvalidConfig, c.Duration)
	}
	if steps := c.Duration / c.Dt; steps > dynamo.MaxSteps {
		return fmt.Errorf("%w: %.0f steps exceeds the limit of %d", ErrInvalidConfig, steps, dynamo.MaxSteps)
	}
	min, max := c.OutputLimits()
	if err := control.ValidateLimits(min, max); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for i, ch := range c.Schedule {
		if math.IsNaN(ch.At) || ch.At < 0 {
			return fmt.Errorf("%w: schedule[%d] at %g", ErrInvalidConfig, i, ch.At)
		}
	}
	return nil
}

// OutputLimits resolves the optional bounds to concrete values.
func (c *Config) OutputLimits() (min, max float64) {
	min, max = math.Inf(-1), math.Inf(1)
	if c.ControllerParams.OutputMin != nil {
		min = *c.ControllerParams.OutputMin
	}
	if c.ControllerParams.OutputMax != nil {
		max = *c.ControllerParams.OutputMax
	}
	return min, max
}

// GetInitState expands the initial process value into the plant's state.
func (c *Config) GetInitState() []float64 {
	switch c.Plant {
	case "spring_mass":
		return []float64{c.Initial, 0}
	default:
		return []float64{c.Initial}
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.PlantParams != nil {
		out.PlantParams = make(map[string]float64, len(c.PlantParams))
		for k, v := range c.PlantParams {
			out.PlantParams[k] = v
		}
	}
	if c.ControllerParams.OutputMin != nil {
		out.ControllerParams.OutputMin = Float(*c.ControllerParams.OutputMin)
	}
	if c.ControllerParams.OutputMax != nil {
		out.ControllerParams.OutputMax = Float(*c.ControllerParams.OutputMax)
	}
	if c.Schedule != nil {
		out.Schedule = append([]SetpointChange(nil), c.Schedule...)
	}
	return &out
}
