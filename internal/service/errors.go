package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("access denied")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream service failed")
)

// Error is a user-facing failure carrying one of the kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func forbidden(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s not found", what)
}

var (
	ErrInvalidCode      = newError(ErrValidation, "Invalid or expired code")
	ErrAlreadyClockedIn = newError(ErrConflict, "You are already clocked in. Please clock out first.")
	ErrNotClockedIn     = newError(ErrConflict, "You need to clock in first before clocking out.")
	ErrStaffNotFound    = newError(ErrNotFound, "Staff not found with provided PSN and sex")
	ErrEmailInUse       = newError(ErrConflict, "This email address is already in use")
	ErrBadCredentials   = newError(ErrUnauthorized, "Invalid email or password")
	ErrAccountInactive  = newError(ErrForbidden, "Account not found or not approved yet.")
)

// ExistingEmailError reports that the PSN already has a provisioned address.
type ExistingEmailError struct {
	Email string
}

func (e *ExistingEmailError) Error() string {
	return "An email has already been created for this PSN"
}

func (e *ExistingEmailError) Unwrap() error { return ErrConflict }
