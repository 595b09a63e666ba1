// Package errors defines the error taxonomy shared by every service.
//
// A ServiceError is safe to show to clients: its Code and Message are part of
// the public contract. Anything that is not a ServiceError is treated as an
// internal fault and never reaches the client verbatim.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is the machine readable error class sent in extensions.code.
type ErrorCode string

const (
	CodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeExpiredCredential ErrorCode = "EXPIRED_CREDENTIAL"
	CodeInvalidCredential ErrorCode = "INVALID_CREDENTIAL"
	CodeConfig            ErrorCode = "CONFIG_ERROR"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeInternal          ErrorCode = "INTERNAL_SERVER_ERROR"
	CodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
)

// InternalMessage is the only text clients see for unclassified failures.
const InternalMessage = "Internal server error"

// ServiceError is a classified error with a client-safe message.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches another ServiceError by code.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !stderrors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetails returns a copy of e with one more detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// Extensions is read by the GraphQL engine and copied into the error's
// extensions object.
func (e *ServiceError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.Code)}
	for k, v := range e.Details {
		ext[k] = v
	}
	return ext
}

// GetServiceError returns the ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}

// Is and As are re-exported so callers need a single errors import.
var (
	Is = stderrors.Is
	As = stderrors.As
)

// =============================================================================
// Constructors
// =============================================================================

// Unauthenticated reports a missing principal.
func Unauthenticated(message string) *ServiceError {
	if message == "" {
		message = "You must be logged in"
	}
	return New(CodeUnauthenticated, message, http.StatusUnauthorized)
}

// Unauthorized is kept as an alias of Unauthenticated for HTTP handlers.
func Unauthorized(message string) *ServiceError {
	return Unauthenticated(message)
}

// Forbidden reports an authenticated principal acting outside its rights.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Not authorized"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound reports a missing entity.
func NotFound(entity string) *ServiceError {
	return New(CodeNotFound, entity+" not found", http.StatusNotFound)
}

// Validation reports malformed input.
func Validation(message string) *ServiceError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ExpiredCredential reports a well-formed token past its expiry.
func ExpiredCredential(err error) *ServiceError {
	se := New(CodeExpiredCredential, "Token has expired", http.StatusUnauthorized)
	se.Err = err
	return se
}

// InvalidCredential reports a token that failed verification.
func InvalidCredential(err error) *ServiceError {
	se := New(CodeInvalidCredential, "Invalid token", http.StatusUnauthorized)
	se.Err = err
	return se
}

// InvalidToken is the name HTTP middleware uses for InvalidCredential.
func InvalidToken(err error) *ServiceError {
	return InvalidCredential(err)
}

// Config reports a misconfiguration detected at startup.
func Config(message string) *ServiceError {
	return New(CodeConfig, message, http.StatusInternalServerError)
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimited, "Too many requests, please try again later", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Unavailable reports an upstream that could not be reached.
func Unavailable(message string) *ServiceError {
	return New(CodeUnavailable, message, http.StatusServiceUnavailable)
}

// Internal wraps an unclassified failure. The message is logged, never sent.
func Internal(message string, err error) *ServiceError {
	se := New(CodeInternal, message, http.StatusInternalServerError)
	se.Err = err
	return se
}
