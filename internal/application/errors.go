package application

import "errors"

var (
	// ErrAlreadyPunchedIn is returned when a clock-in would give the user a
	// second open punch. The caller must clock out first.
	ErrAlreadyPunchedIn = errors.New("application: already punched in")
	// ErrNoActivePunch is returned when a clock-out finds no matching open punch.
	ErrNoActivePunch = errors.New("application: no active punch")
	// ErrWorkOrderClosed is returned when a non-privileged actor mutates a punch
	// on a completed or closed-for-review work order.
	ErrWorkOrderClosed = errors.New("application: work order closed")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrSessionExpired is returned when a session token has passed its TTL.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned when a session token was explicitly revoked.
	ErrSessionRevoked = errors.New("application: session revoked")
	// ErrAlreadyExists is returned when a create collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
// Code optionally names the violated rule for transport-level error codes.
type ValidationError struct {
	Code        string
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
