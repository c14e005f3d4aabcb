// Package control provides the PID controller and the adapters that let it
// drive a simulated plant.
//
// The core type is [PID]. It is a plain value that owns its own state and is
// advanced one sample at a time:
//
//	pid, _ := control.NewPIDWithLimits(2.0, 0.1, 0.5, 50, 0, 100)
//	u := pid.Compute(pv, t) // t in seconds, non-decreasing
//
// [PID.Compute] is deterministic in its inputs; [PID.ComputeNow] samples the
// controller's clock instead of taking t.
//
// Adapters implementing [dynamo.Controller]:
//
//   - [Feedback]: closes a PID loop around one state component
//   - [Manual]: constant open-loop output
//   - [None]: zero output
//
// Controllers implementing [dynamo.Configurable] support live tuning.
package control
