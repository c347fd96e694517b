package types

import "errors"

var (
	// ErrInvalidInput is returned when keypoints or attention data are structurally malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidInference is returned when the inference engine output has the wrong shape.
	ErrInvalidInference = errors.New("invalid inference output")

	// ErrUnexpectedFault marks a failure that escaped the normal error paths.
	ErrUnexpectedFault = errors.New("unexpected fault")
)
