package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrValidation indicates a validation error (bad input). Raised before any
// I/O is attempted.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotAuthenticated indicates no current user id is available.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "not authenticated"
}

// ErrBlobUpload indicates the receipt upload to the blob store failed.
// No record is created when this happens.
type ErrBlobUpload struct {
	Err error
}

func (e *ErrBlobUpload) Error() string {
	return fmt.Sprintf("blob upload failed: %v", e.Err)
}

func (e *ErrBlobUpload) Unwrap() error {
	return e.Err
}

// ErrPersistence indicates a write or read against the transaction store
// failed.
type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return fmt.Sprintf("persistence error [%s]: %v", e.Op, e.Err)
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrSubscription indicates a listener-level failure from the store. The
// live controller absorbs it and publishes a zeroed summary instead.
type ErrSubscription struct {
	Err error
}

func (e *ErrSubscription) Error() string {
	return fmt.Sprintf("subscription failed: %v", e.Err)
}

func (e *ErrSubscription) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
