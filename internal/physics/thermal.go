package physics

import (
	"fmt"

	"github.com/san-kum/pidsim/internal/dynamo"
)

const (
	DefaultHeatGain = 0.1
	DefaultHeatLoss = 0.05
)

// Thermal is a lumped heater: heating power u raises the temperature and
// heat leaks toward the ambient temperature.
//
//	dT/dt = Gain*u - Loss*(T - Ambient)
type Thermal struct {
	Gain    float64
	Loss    float64
	Ambient float64
}

func NewThermal() *Thermal {
	return &Thermal{
		Gain: DefaultHeatGain,
		Loss: DefaultHeatLoss,
	}
}

func (th *Thermal) StateDim() int   { return 1 }
func (th *Thermal) ControlDim() int { return 1 }

func (th *Thermal) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	power := 0.0
	if len(u) > 0 {
		power = u[0]
	}
	return dynamo.State{th.Gain*power - th.Loss*(x[0]-th.Ambient)}
}

// Equilibrium returns the temperature the plant settles at under constant
// power u.
func (th *Thermal) Equilibrium(u float64) float64 {
	if th.Loss == 0 {
		return th.Ambient
	}
	return th.Ambient + th.Gain*u/th.Loss
}

func (th *Thermal) GetParams() map[string]float64 {
	return map[string]float64{
		"gain":    th.Gain,
		"loss":    th.Loss,
		"ambient": th.Ambient,
	}
}

func (th *Thermal) SetParam(name string, value float64) error {
	switch name {
	case "gain":
		th.Gain = value
	case "loss":
		th.Loss = value
	case "ambient":
		th.Ambient = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
