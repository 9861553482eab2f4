package agent

import "errors"

var (
	// ErrIterationCapExceeded is returned when the model keeps requesting
	// tools past the configured number of rounds.
	ErrIterationCapExceeded = errors.New("agent iteration cap exceeded")

	// ErrNoMessages is returned when Run is called without any input.
	ErrNoMessages = errors.New("agent requires at least one message")
)
