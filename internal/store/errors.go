package store

import "errors"

var (
	// ErrNotFound is returned when an action item does not exist.
	ErrNotFound = errors.New("action item not found")

	// ErrDuplicateSource is returned when a source document with the same
	// content hash already exists.
	ErrDuplicateSource = errors.New("source document already ingested")

	// ErrEmptyDescription is returned when an update would blank the description.
	ErrEmptyDescription = errors.New("task description cannot be empty")
)
