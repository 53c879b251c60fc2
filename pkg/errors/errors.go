package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Generic error kinds

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a downstream service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates a downstream rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAlreadyExists indicates a duplicate registration
	ErrAlreadyExists = errors.New("already exists")
)

// Routing errors

var (
	// ErrRuleNotFound indicates the rule id is not registered
	ErrRuleNotFound = errors.New("routing rule not found")

	// ErrInvalidRule indicates a malformed rule definition
	ErrInvalidRule = errors.New("invalid routing rule")

	// ErrUnknownOperator indicates a condition uses an unsupported operator
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrUnknownEventType indicates an event type outside the closed set
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrUnknownPriority indicates a priority outside the closed set
	ErrUnknownPriority = errors.New("unknown priority")

	// ErrUnknownTargetKind indicates a target kind outside the closed set
	ErrUnknownTargetKind = errors.New("unknown target kind")
)

// Delivery errors

var (
	// ErrChannelUnavailable indicates a channel sink is not configured
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrNoTargets indicates a channel had nothing to deliver to
	ErrNoTargets = errors.New("no delivery targets")

	// ErrUnknownTarget indicates a target id has no address mapping
	ErrUnknownTarget = errors.New("unknown delivery target")

	// ErrVoiceDisabled indicates the voice pipeline rejected an alert
	ErrVoiceDisabled = errors.New("voice alert not eligible")

	// ErrVoiceDropped indicates a voice alert was dropped during cooldown
	ErrVoiceDropped = errors.New("voice alert dropped during cooldown")
)

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets callers match validation failures with errors.Is(err, ErrInvalidInput)
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}

	msgs := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("multiple errors (%d): %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the wrapped errors to errors.Is / errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
