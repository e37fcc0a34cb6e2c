package shared

import "errors"

var (
	// ErrNotFound indicates a missing employee, product, order, or period.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a duplicate unique identifier collision.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the acting user lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBusy indicates a bounded lock wait expired; the caller may retry.
	ErrBusy = errors.New("resource busy")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
