package models

import (
	"errors"
	"fmt"
)

// Error codes carried by AppError
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeNoTargets        = "NO_TARGETS"
	CodeNoRecipients     = "NO_RECIPIENTS"
	CodeMissingSecrets   = "MISSING_SECRETS"
	CodeMissingInstance  = "MISSING_INSTANCE"
	CodeResolutionFailed = "RESOLUTION_FAILED"
	CodeDispatchFailed   = "DISPATCH_FAILED"
)

// Common error types
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("operation conflicts with current state")

	// Start preconditions. None of them leave partial state behind.
	ErrInvalidState    = errors.New("campaign is not in a startable state")
	ErrNoTargets       = errors.New("campaign has no target contacts")
	ErrNoRecipients    = errors.New("campaign has no eligible recipients")
	ErrMissingSecrets  = errors.New("instance secrets not found")
	ErrMissingInstance = errors.New("instance not found")

	// ErrResolution wraps failures of the recipient query
	ErrResolution = errors.New("recipient resolution failed")
)

// AppError represents an application-level error with context
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrInvalidInput creates a validation error
func ErrInvalidInput(message string) error {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// ErrNotFoundWithMsg creates a not found error with custom message
func ErrNotFoundWithMsg(message string) error {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Err:     ErrNotFound,
	}
}

// ErrConflictWithMsg creates a conflict error with custom message
func ErrConflictWithMsg(message string) error {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Err:     ErrConflict,
	}
}

// ErrInvalidStateWithStatus reports a start attempt from a non-startable status
func ErrInvalidStateWithStatus(status CampaignStatus) error {
	return &AppError{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("Campaign cannot be started. Current status: %s", status),
		Err:     ErrInvalidState,
	}
}

// ErrNoTargetsSpecified reports an empty raw target list
func ErrNoTargetsSpecified() error {
	return &AppError{
		Code:    CodeNoTargets,
		Message: "No target contacts specified",
		Err:     ErrNoTargets,
	}
}

// ErrNoEligibleRecipients reports a target list with no opted-in, non-group contacts
func ErrNoEligibleRecipients() error {
	return &AppError{
		Code:    CodeNoRecipients,
		Message: "No eligible recipients (contacts must be opted in and not groups)",
		Err:     ErrNoRecipients,
	}
}

// ErrSecretsNotFound reports missing gateway credentials for an instance
func ErrSecretsNotFound() error {
	return &AppError{
		Code:    CodeMissingSecrets,
		Message: "Instance secrets not found",
		Err:     ErrMissingSecrets,
	}
}

// ErrInstanceNotFound reports a campaign bound to a missing instance
func ErrInstanceNotFound() error {
	return &AppError{
		Code:    CodeMissingInstance,
		Message: "Instance not found",
		Err:     ErrMissingInstance,
	}
}

// ErrResolutionFailed wraps a failed recipient query
func ErrResolutionFailed(err error) error {
	return &AppError{
		Code:    CodeResolutionFailed,
		Message: "Failed to fetch contacts",
		Err:     fmt.Errorf("%w: %w", ErrResolution, err),
	}
}
