package services

import (
	"errors"
	"fmt"
)

var (
	// ErrGateway marks failures of the remote data gateway (network, storage, database)
	ErrGateway = errors.New("gateway error")
	// ErrAuthRequired is returned before any gateway call when no valid session is supplied
	ErrAuthRequired = errors.New("authentication required")
	// ErrValidation marks malformed input; use errors.As with *ValidationError for details
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a record or user does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned when sign in fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyExists is returned when creating a user whose email is taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable is returned when a feature depends on a component that is not configured
	ErrUnavailable = errors.New("service unavailable")
	// ErrSuperseded is returned by Fetch when a newer fetch started before this one completed
	ErrSuperseded = errors.New("fetch superseded by a newer filter")
)

// GatewayError describes a failed gateway operation. It is never retried automatically.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrGateway) true for every GatewayError
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}

// ValidationError describes a malformed input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for every ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// gatewayError wraps err as a GatewayError unless it already is one
// or carries a more specific meaning (auth, validation, not found).
func gatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrGateway, ErrAuthRequired, ErrValidation, ErrNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &GatewayError{Op: op, Err: err}
}
