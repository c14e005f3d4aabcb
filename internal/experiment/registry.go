package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/pidsim/internal/config"
	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/integrators"
	"github.com/san-kum/pidsim/internal/physics"
)

type Registry struct {
	plants      map[string]func() dynamo.System
	integrators map[string]func() dynamo.Integrator
	controllers map[string]func(config.ControllerConfig, float64, float64) (dynamo.Controller, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]func() dynamo.System),
		integrators: make(map[string]func() dynamo.Integrator),
		controllers: make(map[string]func(config.ControllerConfig, float64, float64) (dynamo.Controller, error)),
	}

	r.plants["thermal"] = func() dynamo.System { return physics.NewThermal() }
	r.plants["spring_mass"] = func() dynamo.System { return physics.NewSpringMass() }

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	r.controllers["pid"] = func(p config.ControllerConfig, min, max float64) (dynamo.Controller, error) {
		pid, err := control.NewPIDWithLimits(p.Kp, p.Ki, p.Kd, p.Setpoint, min, max)
		if err != nil {
			return nil, err
		}
		return control.NewFeedback(pid, 0), nil
	}
	r.controllers["manual"] = func(p config.ControllerConfig, min, max float64) (dynamo.Controller, error) {
		return control.NewManual(p.Output, p.Setpoint), nil
	}
	r.controllers["none"] = func(p config.ControllerConfig, min, max float64) (dynamo.Controller, error) {
		return control.NewNone(1), nil
	}

	return r
}

// GetPlant builds a plant and applies params through dynamo.Configurable.
func (r *Registry) GetPlant(name string, params map[string]float64) (dynamo.System, error) {
	fn, ok := r.plants[name]
	if !ok {
		return nil, fmt.Errorf("unknown plant: %s", name)
	}
	plant := fn()
	if len(params) == 0 {
		return plant, nil
	}
	c, ok := plant.(dynamo.Configurable)
	if !ok {
		return nil, fmt.Errorf("plant %s takes no parameters", name)
	}
	for k, v := range params {
		if err := c.SetParam(k, v); err != nil {
			return nil, fmt.Errorf("plant %s: %w", name, err)
		}
	}
	return plant, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(name string, params config.ControllerConfig, min, max float64) (dynamo.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(params, min, max)
}

func (r *Registry) ListPlants() []string {
	return sortedKeys(r.plants)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func (r *Registry) ListControllers() []string {
	return sortedKeys(r.controllers)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
