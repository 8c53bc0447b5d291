package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Skill routing error codes
const (
	ErrInvalidDimension         ErrorCode = "INVALID_DIMENSION"
	ErrEmptyRegistry            ErrorCode = "EMPTY_REGISTRY"
	ErrDuplicateSkillName       ErrorCode = "DUPLICATE_SKILL_NAME"
	ErrDuplicateGroupName       ErrorCode = "DUPLICATE_GROUP_NAME"
	ErrInvalidArgument          ErrorCode = "INVALID_ARGUMENT"
	ErrMissingRequiredParameter ErrorCode = "MISSING_REQUIRED_PARAMETER"
	ErrMalformedModelResponse   ErrorCode = "MALFORMED_MODEL_RESPONSE"
	ErrEmbeddingUnavailable     ErrorCode = "EMBEDDING_UNAVAILABLE"
	ErrSkillInvocationFailed    ErrorCode = "SKILL_INVOCATION_FAILED"
	ErrSkillNotFound            ErrorCode = "SKILL_NOT_FOUND"
)

// Upstream error codes
const (
	ErrLanguageModelUnavailable ErrorCode = "LANGUAGE_MODEL_UNAVAILABLE"
	ErrRateLimited              ErrorCode = "RATE_LIMITED"
	ErrTimeout                  ErrorCode = "TIMEOUT"
	ErrInternalError            ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Skill      string    `json:"skill,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Skill != "" {
		prefix = fmt.Sprintf("[%s] %s:", e.Code, e.Skill)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithSkill records the skill the error belongs to.
func (e *Error) WithSkill(name string) *Error {
	e.Skill = name
	return e
}

// AsError extracts a *Error from anywhere in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether err (or anything it wraps) carries the code.
func IsErrorCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// WrapError wraps err into a *Error with the given code. An err that already
// carries the same code is returned unchanged.
func WrapError(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok && e.Code == code {
		return e
	}
	return &Error{Code: code, Message: message, Cause: err, Retryable: isRetryableCause(err)}
}

// retryableCause is implemented by provider errors that know their own retry semantics.
type retryableCause interface {
	IsRetryable() bool
}

func isRetryableCause(err error) bool {
	var rc retryableCause
	if errors.As(err, &rc) {
		return rc.IsRetryable()
	}
	return IsRetryable(err)
}

// HTTPStatusFor maps an error code to the HTTP status the API layer reports.
func HTTPStatusFor(code ErrorCode) int {
	switch code {
	case ErrInvalidArgument, ErrInvalidDimension, ErrMissingRequiredParameter:
		return http.StatusBadRequest
	case ErrSkillNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrMalformedModelResponse, ErrSkillInvocationFailed:
		return http.StatusBadGateway
	case ErrEmbeddingUnavailable, ErrLanguageModelUnavailable, ErrEmptyRegistry:
		return http.StatusServiceUnavailable
	case ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
