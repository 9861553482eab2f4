package tasks

import "errors"

var (
	// ErrUnsupportedShape is returned when the payload is neither an array of
	// tasks nor an object with a "tasks" array.
	ErrUnsupportedShape = errors.New("expected a JSON array of tasks or an object with a \"tasks\" key")

	// ErrInvalidStatus is returned when a status is not one of the four known values.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidTask is returned by Check for a task that breaks the stored invariants.
	ErrInvalidTask = errors.New("invalid task")

	// ErrRulesNotFound is returned by LoadRules when the rules file does not exist.
	ErrRulesNotFound = errors.New("priority rules file not found")
)
