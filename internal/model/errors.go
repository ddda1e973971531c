package model

import "fmt"

// ValidationError rejects a submission synchronously; the job is never
// created.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

type NotFoundError struct {
	ID string
}

func NewNotFoundError(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.ID)
}

// InvalidStateError is returned for operations that are not legal in the
// job's current status, e.g. cancelling a completed job.
type InvalidStateError struct {
	ID     string
	Status JobStatus
}

func NewInvalidStateError(id string, status JobStatus) *InvalidStateError {
	return &InvalidStateError{ID: id, Status: status}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s is %s", e.ID, e.Status)
}
