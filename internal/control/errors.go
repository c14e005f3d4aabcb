package control

import "errors"

var (
	// ErrInvalidLimits indicates an output range with min > max or a NaN bound.
	ErrInvalidLimits = errors.New("control: invalid output limits")

	// ErrUnknownParam indicates a SetParam call with an unsupported name.
	ErrUnknownParam = errors.New("control: unknown parameter")
)
