// Package viz renders controller runs in the terminal.
//
// Stored runs are drawn with asciigraph: the process value against its
// setpoint, then the controller output. [Model] is a Bubble Tea program that
// steps a closed loop in real time and lets the gains be tuned while it runs.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset state, controller and parameters
//	Tab   - Cycle tunable parameters
//	Up/K  - Increase parameter
//	Down/J- Decrease parameter
//	?     - Show help overlay
//	Q     - Quit
package viz
