package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when an insert collides with an existing record.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrActivePunchExists is returned when inserting an open punch would give
	// the user a second row with a null clock-out. Raised by the partial unique
	// index on time_punches, which makes the check-then-act atomic.
	ErrActivePunchExists = errors.New("persistence: active punch exists")
	// ErrConstraintViolation is returned when a CHECK constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing row.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
)
