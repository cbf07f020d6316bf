package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed input. Nothing is written when it is returned.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// DuplicateKeyError reports a unique constraint violation on Key.
type DuplicateKeyError struct {
	Key string
	Err error
}

func NewDuplicateKeyError(key string, err error) error {
	return &DuplicateKeyError{Key: key, Err: err}
}

func (err DuplicateKeyError) Error() string {
	if err.Err == nil {
		return "duplicate " + err.Key
	}
	return err.Err.Error()
}

func (err DuplicateKeyError) Unwrap() error { return err.Err }

// ExternalServiceError reports a failing remote collaborator (payment gateway, document renderer, object storage).
// It is always retryable and never means success.
type ExternalServiceError struct {
	Service string
	Err     error
}

func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

func (err ExternalServiceError) Error() string {
	if err.Err == nil {
		return err.Service + ": unavailable"
	}
	return err.Service + ": " + err.Err.Error()
}

func (err ExternalServiceError) Unwrap() error { return err.Err }

// IsRetryable tells whether err (or one it wraps) is an ExternalServiceError.
func IsRetryable(err error) bool {
	var extErr *ExternalServiceError
	return errors.As(err, &extErr)
}

// DataIntegrityError reports stored state contradicting its own invariant.
type DataIntegrityError struct {
	Err error
}

func NewDataIntegrityError(err error) error {
	return &DataIntegrityError{Err: err}
}

func (err DataIntegrityError) Error() string { return "data integrity: " + err.Err.Error() }

func (err DataIntegrityError) Unwrap() error { return err.Err }

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string { return err.Resource + " not found" }

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
