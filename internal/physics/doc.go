// Package physics provides plant models for closed-loop simulation.
//
// Each model implements the [dynamo.System] interface:
//
//   - [Thermal]: heater with Newtonian heat loss (state: temperature)
//   - [SpringMass]: force-driven damped oscillator (state: position, velocity)
//
// Both also implement [dynamo.Configurable] so the live view can retune the
// plant while the controller is running.
package physics
