// Package errors defines the service error taxonomy shared by the RPC
// dispatcher, the data access layer and the HTTP boundary. Every error
// carries a stable code, a caller-visible message and the HTTP status the
// boundary should answer with. Business-logic outcomes (invalid params,
// not found, query failed, unknown method) map to 200 because they travel
// inside the response envelope, not as transport failures.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	CodeMalformedRequest      = "MALFORMED_REQUEST"
	CodeMethodNotFound        = "METHOD_NOT_FOUND"
	CodeDuplicateMethod       = "DUPLICATE_METHOD"
	CodeInvalidParams         = "INVALID_PARAMS"
	CodeNotFound              = "NOT_FOUND"
	CodeQueryFailed           = "QUERY_FAILED"
	CodeConnectionUnavailable = "CONNECTION_UNAVAILABLE"
	CodeRateLimited           = "RATE_LIMITED"
)

// Error is a service error. Message is what callers see in the response
// envelope; Err, when set, preserves the underlying cause for errors.Is/As.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// MalformedRequest reports a request body that is not a well-formed
// envelope. Rejected with HTTP 400 before method lookup.
func MalformedRequest(message string) *Error {
	return &Error{Code: CodeMalformedRequest, Message: message, HTTPStatus: http.StatusBadRequest}
}

// MethodNotFound reports a dispatch to an unregistered method.
func MethodNotFound(method string) *Error {
	return &Error{
		Code:       CodeMethodNotFound,
		Message:    fmt.Sprintf("Method not found: %s", method),
		HTTPStatus: http.StatusOK,
	}
}

// DuplicateMethod reports a second registration under the same name. It is
// a startup-time programming error and aborts initialization.
func DuplicateMethod(method string) *Error {
	return &Error{
		Code:       CodeDuplicateMethod,
		Message:    fmt.Sprintf("method %q already registered", method),
		HTTPStatus: http.StatusInternalServerError,
	}
}

// InvalidParams reports a handler rejecting its parameters object.
func InvalidParams(message string) *Error {
	return &Error{Code: CodeInvalidParams, Message: message, HTTPStatus: http.StatusOK}
}

// NotFound reports a lookup that matched zero rows.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusOK}
}

// QueryFailed reports a store round-trip that returned a non-success
// status. The store's error text is part of the message.
func QueryFailed(err error) *Error {
	return &Error{
		Code:       CodeQueryFailed,
		Message:    fmt.Sprintf("Query failed: %v", err),
		HTTPStatus: http.StatusOK,
		Err:        err,
	}
}

// ConnectionUnavailable reports that no valid database handle could be
// established within the retry budget.
func ConnectionUnavailable(err error) *Error {
	return &Error{
		Code:       CodeConnectionUnavailable,
		Message:    "Database unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// RateLimited reports a request rejected by the per-user activity gate.
func RateLimited() *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "You have exceeded the rate limit",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// RateLimitExceeded reports a request rejected by the transport-level
// limiter, carrying the configured budget.
func RateLimitExceeded(limit int, window string) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func hasCode(err error, code string) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsMalformedRequest(err error) bool { return hasCode(err, CodeMalformedRequest) }
func IsMethodNotFound(err error) bool   { return hasCode(err, CodeMethodNotFound) }
func IsDuplicateMethod(err error) bool  { return hasCode(err, CodeDuplicateMethod) }
func IsInvalidParams(err error) bool    { return hasCode(err, CodeInvalidParams) }
func IsNotFound(err error) bool         { return hasCode(err, CodeNotFound) }
func IsQueryFailed(err error) bool      { return hasCode(err, CodeQueryFailed) }
func IsRateLimited(err error) bool      { return hasCode(err, CodeRateLimited) }

// IsConnectionUnavailable reports whether err is the no-valid-handle error.
func IsConnectionUnavailable(err error) bool { return hasCode(err, CodeConnectionUnavailable) }

// HTTPStatusOf maps err to the HTTP status the boundary should answer
// with. Unrecognized errors map to 500.
func HTTPStatusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
