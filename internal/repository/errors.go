package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a conditional update loses to a
	// concurrent writer.
	ErrConflict = errors.New("conflicting concurrent update")
)
