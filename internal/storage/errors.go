package storage

import "errors"

var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrOptimisticLock is returned when a CAS write loses a race against a
	// concurrent update of the same row's version column.
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)
