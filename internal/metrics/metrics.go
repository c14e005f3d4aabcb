// Package metrics scores a closed-loop run.
package metrics

import "github.com/san-kum/pidsim/internal/dynamo"

// Default returns the metric set recorded for every tracked run: x[index] is
// the process value and [min, max] the controller's output limits.
func Default(target dynamo.Tracker, index int, min, max float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewIAE(target, index),
		NewOvershoot(target, index),
		NewSteadyState(target, index, 0.2),
		NewControlEffort(),
		NewSaturation(min, max),
	}
}
