package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input or contract violation
	ErrCatRouting    ErrorCategory = "routing"    // No model satisfies a role
	ErrCatTimeout    ErrorCategory = "timeout"    // Model call timed out
	ErrCatNetwork    ErrorCategory = "network"    // Backend unreachable / no credential
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Backend rate limited
	ErrCatParse      ErrorCategory = "parse"      // Malformed model response
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatState      ErrorCategory = "state"      // Pipeline state conflict
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error. Never retried.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrRoutingUnavailable indicates no registered model can serve a role under
// the active policy. Fatal for the enclosing request; never retried.
func ErrRoutingUnavailable(role, policy string) *DomainError {
	return &DomainError{
		Category:  ErrCatRouting,
		Code:      CodeRoutingUnavailable,
		Message:   fmt.Sprintf("no model available for role %q under policy %q", role, policy),
		Retryable: false,
		Details: map[string]interface{}{
			"role":   role,
			"policy": policy,
		},
	}
}

// ErrModelTimeout indicates a model call exceeded its per-call timeout.
func ErrModelTimeout(model string, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      CodeModelTimeout,
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"model": model},
	}
}

// ErrModelUnavailable indicates the backend could not be reached or refused
// the request (missing credential, connection failure).
func ErrModelUnavailable(model string, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      CodeModelUnavailable,
		Message:   message,
		Retryable: true,
		Details:   map[string]interface{}{"model": model},
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrMalformedResponse indicates the model returned text that did not parse
// into the expected shape after normalization.
func ErrMalformedResponse(role string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatParse,
		Code:      CodeMalformedResponse,
		Message:   fmt.Sprintf("response for role %q did not match expected shape", role),
		Retryable: true,
		Cause:     cause,
	}
}

// ErrOutputValidation indicates an agent output failed its validator.
// Handled locally with one regeneration attempt; never propagated.
func ErrOutputValidation(role, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      CodeOutputInvalid,
		Message:   message,
		Retryable: false,
		Details:   map[string]interface{}{"role": role},
	}
}

// ErrExecution creates a generic execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// IsRoutingUnavailable reports whether err is a routing failure. Routing
// failures abort the enclosing stage and must never pass through the retry
// wrapper.
func IsRoutingUnavailable(err error) bool {
	return IsCategory(err, ErrCatRouting)
}

// Predefined error codes
const (
	CodeRoutingUnavailable = "ROUTING_UNAVAILABLE"
	CodeModelTimeout       = "MODEL_TIMEOUT"
	CodeModelUnavailable   = "MODEL_UNAVAILABLE"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeOutputInvalid      = "OUTPUT_INVALID"
	CodeInvalidState       = "INVALID_STATE"
	CodeCancelled          = "CANCELLED"

	// Validation error codes
	CodeEmptyTopic        = "EMPTY_TOPIC"
	CodeSlideCountBounds  = "SLIDE_COUNT_OUT_OF_BOUNDS"
	CodeInvalidConfig     = "INVALID_CONFIG"
	CodeUnknownPolicy     = "UNKNOWN_POLICY"
	CodeDuplicateModel    = "DUPLICATE_MODEL"
	CodeTaskIDRequired    = "TASK_ID_REQUIRED"
	CodeStepCycleDetected = "STEP_CYCLE_DETECTED"
)
