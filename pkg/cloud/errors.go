package cloud

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an adapter failure for callers that need to act on
// the kind of failure rather than its provider-specific text.
type ErrorCode string

const (
	// ErrCodeConnection indicates the provider endpoint is unreachable or
	// authentication could not complete.
	ErrCodeConnection ErrorCode = "CONNECTION"

	// ErrCodePermission indicates the credentials lack a required role or
	// scope.
	ErrCodePermission ErrorCode = "PERMISSION_DENIED"

	// ErrCodeNotFound indicates the resource id does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeRateLimited indicates quota exhaustion or API throttling.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"

	// ErrCodeTimeout indicates a bounded operation exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeUnsupported indicates the feature is not implemented for this
	// provider (e.g. OpenStack metrics and billing).
	ErrCodeUnsupported ErrorCode = "UNSUPPORTED"

	// ErrCodeValidation indicates a malformed composite id or argument,
	// detected before any network call.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
)

// Error is the typed error every adapter converts provider SDK failures
// into. Callers never see a raw SDK error type; the original error remains
// available through Unwrap for logging.
type Error struct {
	// Code is the taxonomy classification.
	Code ErrorCode `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Provider is the provider type the error originated from, if known.
	Provider ProviderType `json:"provider,omitempty"`

	// Resource is the instance or resource id involved, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the adapter operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying provider SDK error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Resource != "" {
		msg += fmt.Sprintf(" (resource=%s)", e.Resource)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithProvider adds provider context to an error.
func (e *Error) WithProvider(p ProviderType) *Error {
	e.Provider = p
	return e
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(id string) *Error {
	e.Resource = id
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewConnectionError creates a connectivity/auth-unreachable error.
func NewConnectionError(message string, err error) *Error {
	return newError(ErrCodeConnection, message, err)
}

// NewPermissionError creates a missing-role/scope error.
func NewPermissionError(message string, err error) *Error {
	return newError(ErrCodePermission, message, err)
}

// NewNotFoundError creates a resource-does-not-exist error.
func NewNotFoundError(message string, err error) *Error {
	return newError(ErrCodeNotFound, message, err)
}

// NewRateLimitError creates a quota/throttling error.
func NewRateLimitError(message string, err error) *Error {
	return newError(ErrCodeRateLimited, message, err)
}

// NewTimeoutError creates a deadline-exceeded error.
func NewTimeoutError(message string, err error) *Error {
	return newError(ErrCodeTimeout, message, err)
}

// NewUnsupportedError creates a feature-not-implemented error.
func NewUnsupportedError(message string) *Error {
	return newError(ErrCodeUnsupported, message, nil)
}

// NewValidationError creates a malformed-argument error.
func NewValidationError(message string, err error) *Error {
	return newError(ErrCodeValidation, message, err)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConnection reports whether err is classified as a connection failure.
func IsConnection(err error) bool { return hasCode(err, ErrCodeConnection) }

// IsPermission reports whether err is classified as permission denied.
func IsPermission(err error) bool { return hasCode(err, ErrCodePermission) }

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsRateLimited reports whether err is classified as throttled.
func IsRateLimited(err error) bool { return hasCode(err, ErrCodeRateLimited) }

// IsTimeout reports whether err is classified as a timeout.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsUnsupported reports whether err is classified as unsupported.
func IsUnsupported(err error) bool { return hasCode(err, ErrCodeUnsupported) }

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsRetryable reports whether the failure may succeed on retry.
// Connection failures, throttling, and timeouts are retryable.
func IsRetryable(err error) bool {
	return IsConnection(err) || IsRateLimited(err) || IsTimeout(err)
}
