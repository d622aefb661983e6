package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// ErrCapabilityUnavailable is returned when an optional collaborator is
// not configured. It is not a failure of the collaborator.
var ErrCapabilityUnavailable = errors.New("capability not available")

// ErrUnsupportedJobType is returned when no engine can run a job type.
var ErrUnsupportedJobType = errors.New("unsupported job type")

// ValidationError reports every violated topology or config constraint.
type ValidationError struct {
	Violations []string
}

// Error returns the violations joined into one message.
func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "validation failed"
	case 1:
		return e.Violations[0]
	default:
		return fmt.Sprintf("%d validation errors: %s", len(e.Violations), strings.Join(e.Violations, "; "))
	}
}

// NewValidationError creates a ValidationError with a single violation.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Violations: []string{fmt.Sprintf(format, args...)}}
}

// ValidationErrorFrom flattens a multierr-combined error into a
// ValidationError. It returns nil when err is nil.
func ValidationErrorFrom(err error) error {
	if err == nil {
		return nil
	}
	ve := &ValidationError{}
	for _, e := range multierr.Errors(err) {
		var nested *ValidationError
		if errors.As(e, &nested) {
			ve.Violations = append(ve.Violations, nested.Violations...)
			continue
		}
		ve.Violations = append(ve.Violations, e.Error())
	}
	return ve
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConfigError reports a configuration push that failed on some instances.
type ConfigError struct {
	Instances []string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration failed on %s: %v", strings.Join(e.Instances, ","), e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TimeoutError is returned when nodes keep sending heartbeats past the
// quiescence bound.
type TimeoutError struct {
	Operation string
	Waited    time.Duration
	Instances []string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s; still alive: %s", e.Operation, e.Waited, strings.Join(e.Instances, ","))
}

// IsTimeoutError checks if an error is a TimeoutError.
func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// OperationCancelledError is the terminal error of a lifecycle task whose
// context was cancelled while in flight.
type OperationCancelledError struct {
	Operation string
	Cause     error
}

func (e *OperationCancelledError) Error() string {
	return fmt.Sprintf("%s cancelled: %v", e.Operation, e.Cause)
}

func (e *OperationCancelledError) Unwrap() error { return e.Cause }

// IsOperationCancelled checks if an error is an OperationCancelledError.
func IsOperationCancelled(err error) bool {
	var oe *OperationCancelledError
	return errors.As(err, &oe)
}
