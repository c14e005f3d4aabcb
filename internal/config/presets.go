package config

import "sort"

var Presets = map[string]map[string]*Config{
	"thermal": {
		"oven": {
			Plant: "thermal", Integrator: "euler", Controller: "pid", Dt: 0.5, Duration: 30.0, Initial: 20.0,
			ControllerParams: ControllerConfig{Kp: 2.0, Ki: 0.1, Kd: 0.5, Setpoint: 50, OutputMin: Float(0), OutputMax: Float(100)},
		},
		"p-only": {
			Plant: "thermal", Integrator: "euler", Controller: "pid", Dt: 0.5, Duration: 60.0, Initial: 20.0,
			ControllerParams: ControllerConfig{Kp: 2.0, Setpoint: 50, OutputMin: Float(0), OutputMax: Float(100)},
		},
		"windup": {
			Plant: "thermal", Integrator: "euler", Controller: "pid", Dt: 0.5, Duration: 120.0, Initial: 20.0,
			ControllerParams: ControllerConfig{Kp: 1.0, Ki: 1.0, Setpoint: 90, OutputMin: Float(0), OutputMax: Float(40)},
		},
		"staircase": {
			Plant: "thermal", Integrator: "euler", Controller: "pid", Dt: 0.5, Duration: 90.0, Initial: 20.0,
			ControllerParams: ControllerConfig{Kp: 2.0, Ki: 0.1, Kd: 0.5, Setpoint: 50, OutputMin: Float(0), OutputMax: Float(100)},
			Schedule:         []SetpointChange{{At: 30, Setpoint: 70}, {At: 60, Setpoint: 40}},
		},
		"open-loop": {
			Plant: "thermal", Integrator: "euler", Controller: "manual", Dt: 0.5, Duration: 60.0, Initial: 20.0,
			ControllerParams: ControllerConfig{Setpoint: 50, Output: 25},
		},
	},
	"spring_mass": {
		"position": {
			Plant: "spring_mass", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 20.0, Initial: 0.0,
			ControllerParams: ControllerConfig{Kp: 40, Ki: 8, Kd: 5, Setpoint: 1, OutputMin: Float(-100), OutputMax: Float(100)},
		},
		"pd": {
			Plant: "spring_mass", Integrator: "rk4", Controller: "pid", Dt: 0.01, Duration: 10.0, Initial: 0.0,
			ControllerParams: ControllerConfig{Kp: 40, Kd: 5, Setpoint: 1},
		},
	},
}

var defaultPresets = map[string]string{
	"thermal":     "oven",
	"spring_mass": "position",
}

// ForPlant is the starting config for a plant: its default preset, or
// DefaultConfig with the plant name set when it has none.
func ForPlant(plant string) *Config {
	if cfg := GetPreset(plant, defaultPresets[plant]); cfg != nil {
		return cfg
	}
	cfg := DefaultConfig()
	cfg.Plant = plant
	return cfg
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(plant, preset string) *Config {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	cfg, ok := plantPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(plant string) []string {
	plantPresets, ok := Presets[plant]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(plantPresets))
	for name := range plantPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListPlants() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
