// Package dynamo provides the closed-loop simulation primitives.
//
// The package defines the interfaces tying a controller to a plant:
//
//   - [State]: vector representing plant state
//   - [System]: interface for plant models (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper
//   - [Controller]: feedback controller interface
//   - [Simulator]: drives the sample, compute, apply loop
//
// # Example
//
//	plant := physics.NewThermal()
//	ctrl := control.NewFeedback(pid, 0)
//	sim := dynamo.New(plant, integrators.NewEuler(), ctrl)
//	result, _ := sim.Run(ctx, dynamo.State{20}, cfg)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe, and neither are the controllers
// and integrators they own. For parallel runs use [Ensemble], which requires
// every member to be built from its own instances.
package dynamo
