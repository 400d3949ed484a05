package utils

import (
	"errors"
	"fmt"
)

// Custom error types
var (
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")

	// ErrDatabase is returned when there's a database operation error
	ErrDatabase = errors.New("database error")

	// ErrLock is returned when a distributed lock operation fails
	ErrLock = errors.New("lock error")

	// ErrIndex is returned when a document index operation fails
	ErrIndex = errors.New("index error")
)

// ValidationError represents an error that occurs during input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DatabaseError represents an error that occurs during database operations
type DatabaseError struct {
	Operation string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("database error during %s", e.Operation)
}

func (e *DatabaseError) Unwrap() error {
	return ErrDatabase
}

// LockError represents a failure talking to the distributed lock service.
// Lock contention is not a LockError; contention is reported as a plain
// boolean by the lock client.
type LockError struct {
	Name  string
	Cause error
}

func (e *LockError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("lock error on '%s': %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("lock error on '%s'", e.Name)
}

func (e *LockError) Unwrap() error {
	return ErrLock
}

// IndexError represents an error returned by the source or destination
// document index
type IndexError struct {
	Index     string
	Operation string
	Cause     error
}

func (e *IndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index error on '%s' during %s: %v", e.Index, e.Operation, e.Cause)
	}
	return fmt.Sprintf("index error on '%s' during %s", e.Index, e.Operation)
}

func (e *IndexError) Unwrap() error {
	return ErrIndex
}

// Error wrapping functions

// WrapValidationError wraps an error as a validation error
func WrapValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapNotFoundError wraps an error as a not found error
func WrapNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// WrapDatabaseError wraps an error as a database error
func WrapDatabaseError(operation string, cause error) error {
	return &DatabaseError{
		Operation: operation,
		Cause:     cause,
	}
}

// WrapLockError wraps an error as a lock error
func WrapLockError(name string, cause error) error {
	return &LockError{
		Name:  name,
		Cause: cause,
	}
}

// WrapIndexError wraps an error as an index error
func WrapIndexError(index, operation string, cause error) error {
	return &IndexError{
		Index:     index,
		Operation: operation,
		Cause:     cause,
	}
}

// Error checking functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDatabaseError checks if an error is a database error
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsLockError checks if an error is a lock error
func IsLockError(err error) bool {
	return errors.Is(err, ErrLock)
}

// IsIndexError checks if an error is an index error
func IsIndexError(err error) bool {
	return errors.Is(err, ErrIndex)
}

// Helper function to create a validation error for required fields
func RequiredFieldError(field string) error {
	return WrapValidationError(field, "field is required")
}
