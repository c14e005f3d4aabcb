// Package analysis inspects the recorded history of a closed-loop run.
//
// Spectrum looks for sustained oscillation in the tracking error, the usual
// symptom of too much gain or a loop cycling against its output limits.
// SettlingTime measures how long the process value takes to stay within a
// band around the setpoint.
package analysis
