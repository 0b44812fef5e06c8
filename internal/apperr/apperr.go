// Package apperr defines the error kinds surfaced by the quiz engine.
//
// Callers test for a kind with errors.As (or the Is* helpers); the HTTP layer
// maps kinds to status codes and never forwards the wrapped cause to clients.
package apperr

import "errors"

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Msg    string
	Fields []FieldError
}

// NewValidationError returns a ValidationError with an optional set of field errors.
func NewValidationError(msg string, flds ...FieldError) error {
	return &ValidationError{Msg: msg, Fields: flds}
}

func (e *ValidationError) Error() string { return e.Msg }

// GenerationError reports a provider response that failed the quiz schema.
type GenerationError struct {
	Msg string
	Err error
}

func (e *GenerationError) Error() string { return join(e.Msg, e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// GradingError reports that no attempt produced a valid graded-answers shape.
type GradingError struct {
	Msg string
	Err error
}

func (e *GradingError) Error() string { return join(e.Msg, e.Err) }
func (e *GradingError) Unwrap() error { return e.Err }

// NotFoundError reports that no row exists for an id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return e.Kind + " " + e.ID + " not found" }

// AccessDeniedError reports an access-code mismatch.
type AccessDeniedError struct {
	SessionID string
}

func (e *AccessDeniedError) Error() string { return "invalid access code for session " + e.SessionID }

// PersistenceError reports a store read or write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return join(e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// InternalError reports a data-integrity fault.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return e.Msg }

func join(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsAccessDenied(err error) bool {
	var e *AccessDeniedError
	return errors.As(err, &e)
}

func IsGeneration(err error) bool {
	var e *GenerationError
	return errors.As(err, &e)
}

func IsGrading(err error) bool {
	var e *GradingError
	return errors.As(err, &e)
}

func IsPersistence(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

func IsInternal(err error) bool {
	var e *InternalError
	return errors.As(err, &e)
}
