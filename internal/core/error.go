package core

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrorCodeScopeViolation is raised on any attempt to read or write
	// outside the caller's project, or to mutate an immutable project id.
	// Fatal to the request, never retried.
	ErrorCodeScopeViolation ErrorCode = "SCOPE_VIOLATION"
	// ErrorCodeInvalidStateTransition is raised when a workflow transition
	// is not legal from the current state. Fatal, surfaced to the caller.
	ErrorCodeInvalidStateTransition ErrorCode = "INVALID_STATE_TRANSITION"
	// ErrorCodeBudgetExceeded blocks an order release until a budget
	// exception is approved. Recoverable through the exception workflow.
	ErrorCodeBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// ErrorCodeAnonymityViolation is raised on access to masked supplier
	// identity before the reveal point. Fatal, logged as a security event.
	ErrorCodeAnonymityViolation ErrorCode = "ANONYMITY_VIOLATION"
	// ErrorCodeLocked signals a concurrent transition on the same entity.
	// The caller should retry with backoff.
	ErrorCodeLocked ErrorCode = "RFQ_LOCKED"
	// ErrorCodeNotFound does not distinguish between "id does not exist"
	// and "exists in another project".
	ErrorCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrorCodeUnsupportedOperation ErrorCode = "UNSUPPORTED_OPERATION"
	ErrorCodeForbidden            ErrorCode = "FORBIDDEN"
	// ErrorCodeValidationFailed covers malformed payloads before any domain
	// rule is evaluated.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// DomainError is the only error shape that crosses the service boundary.
// Raw storage errors stay wrapped in the internal field and are never
// rendered to callers.
type DomainError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	internal error
}

func NewError(code ErrorCode, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string {
	if e.internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.internal
}

func (e *DomainError) WithInternal(err error) *DomainError {
	clone := *e
	clone.internal = err
	return &clone
}

func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	clone := *e
	clone.Details = details
	return &clone
}

// Retriable reports whether the caller may safely retry the request.
func (e *DomainError) Retriable() bool {
	return e.Code == ErrorCodeLocked
}

func NewNotFound(resource string) *DomainError {
	return NewError(ErrorCodeNotFound, resource+" not found")
}

func NewScopeViolation(message string) *DomainError {
	return NewError(ErrorCodeScopeViolation, message)
}

func NewInvalidStateTransition(from, to string) *DomainError {
	return NewError(ErrorCodeInvalidStateTransition, fmt.Sprintf("transition from %s to %s is not allowed", from, to))
}

func NewForbidden(action string) *DomainError {
	return NewError(ErrorCodeForbidden, "role is not allowed to "+action)
}

// HasErrorCode walks the error chain looking for a DomainError carrying the
// given code.
func HasErrorCode(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
