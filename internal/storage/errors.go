package storage

import "errors"

// Storage errors shared by every backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a measurement, sample or
	// training run whose key already exists. Those records are never updated.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a record fails validation or a
	// database constraint.
	ErrInvalidInput = errors.New("invalid input")
)
