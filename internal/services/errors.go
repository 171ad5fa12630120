// Package services implements the business logic that coordinates across
// repositories and external systems: login and first-user bootstrap, team
// onboarding with invite mail, the connection lifecycle, and instance
// settings. Handlers translate the error types defined here into HTTP
// responses; repositories stay free of domain vocabulary.
package services

import "errors"

// ErrNotAuthenticated means no valid identity could be resolved for a
// request. Handlers map it to 401 with a generic body that never reveals
// which factor was missing.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrUserNotFound means a GitHub identity resolved to an email that no
// invited user carries. The OAuth callback maps it to a frontend redirect.
var ErrUserNotFound = errors.New("user not found")

// Error is a domain error whose message is safe to show to API clients.
// Handlers map it to 400 with a {message} body.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewError creates a domain error.
func NewError(message string) *Error {
	return &Error{Message: message}
}

// FieldError is a domain error attributed to a single input field, rendered
// as a field-keyed 400 body (login uses this to point at email vs password).
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// NewFieldError creates a field-keyed domain error.
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

// PermissionError means the identity is valid but lacks the required role.
// Handlers map it to 403 with the reason.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

// NewPermissionError creates a permission error.
func NewPermissionError(reason string) *PermissionError {
	return &PermissionError{Reason: reason}
}
