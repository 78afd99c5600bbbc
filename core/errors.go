package core

import "github.com/pkg/errors"

// FieldError ties an error message to a single payload field; the API error
// handler renders these as a {field: message} JSON map.
type FieldError struct {
	Field string
	Error string
}

// ValidationError wraps a domain rule violation (duplicate formal ID, unknown
// guardian, ...) so it surfaces as a 400 with field errors instead of a 500.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals an integrity issue severe enough to stop the API process;
// the error handler calls the server's shutdown hook when it sees one.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
