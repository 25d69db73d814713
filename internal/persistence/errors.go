package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a NOT NULL or
	// CHECK constraint, or is missing a required key.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrVersionConflict is returned when an update names a stale version.
	ErrVersionConflict = errors.New("persistence: version conflict")
	// ErrBusy is returned when the database stayed locked through every retry.
	ErrBusy = errors.New("persistence: database busy")
)
