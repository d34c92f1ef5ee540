package pipeline

import (
	"errors"
	"fmt"
)

// SourceError reports a failure retrieving input.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %v", e.Op, e.Err) }

func (e *SourceError) Unwrap() error { return e.Err }

// HandlerError reports a processing failure inside a stage: encode/decode
// mismatch, reducer failure, subprocess I/O.
type HandlerError struct {
	Op  string
	Err error
}

func (e *HandlerError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *HandlerError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid stage configuration; it is returned
// by constructors, before any data flows.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewSourceError wraps err as a SourceError unless it is already classified.
func NewSourceError(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &SourceError{Op: op, Err: err}
}

// NewHandlerError wraps err as a HandlerError unless it is already classified.
func NewHandlerError(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &HandlerError{Op: op, Err: err}
}

// Configf builds a ConfigurationError with a formatted message.
func Configf(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Err: fmt.Errorf(format, args...)}
}

func classified(err error) bool {
	return IsSourceError(err) || IsHandlerError(err) || IsConfigurationError(err)
}

// IsSourceError reports whether err wraps a SourceError.
func IsSourceError(err error) bool {
	var target *SourceError
	return errors.As(err, &target)
}

// IsHandlerError reports whether err wraps a HandlerError.
func IsHandlerError(err error) bool {
	var target *HandlerError
	return errors.As(err, &target)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
