package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

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

// ConfigurationError is returned when the application cannot start with the provided settings.
type ConfigurationError struct {
	Setting string
	Err     error
}

func NewConfigurationError(setting string, err error) error {
	return &ConfigurationError{Setting: setting, Err: err}
}

func (err ConfigurationError) Error() string {
	return "invalid configuration: " + err.Setting + ": " + err.Err.Error()
}

func (err ConfigurationError) Unwrap() error { return err.Err }

func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}

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
