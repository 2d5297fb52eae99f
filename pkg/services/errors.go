// Package services exposes the workflow health operations to the HTTP API, the CLI and the scheduler.
package services

import (
	"errors"
	"fmt"

	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
)

// MaxBatchSize bounds the number of workflow ids a batch analysis accepts.
const MaxBatchSize = 100

// ReasonStaleWorkflow marks fixes discarded because the workflow changed while they were computed.
const ReasonStaleWorkflow = "stale workflow state"

// Validation errors (400 Bad Request).
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrWorkflowIDRequired = fmt.Errorf("%w: workflow id is required", ErrInvalidArgument)
	ErrBatchTooLarge      = fmt.Errorf("%w: batch exceeds %d workflow ids", ErrInvalidArgument, MaxBatchSize)
	ErrInvalidHealthScore = fmt.Errorf("%w: min health score must be between 0 and 100", ErrInvalidArgument)
	ErrInvalidWorkflow    = fmt.Errorf("%w: invalid workflow document", ErrInvalidArgument)
	ErrUnknownIssueIDs    = fmt.Errorf("%w: %w", ErrInvalidArgument, health.ErrUnknownIssueIDs)
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound checks if an error means the workflow does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
