package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")

	// Claim protocol errors. Expected steady-state outcomes of concurrent
	// operation, not faults; never retried internally.
	ErrDuplicateResponse   = errors.New("rider already responded to this request")
	ErrRequestNotFound     = errors.New("delivery request not found")
	ErrAlreadyClaimed      = errors.New("delivery request already claimed")
	ErrNotEarliestAcceptor = errors.New("another rider accepted first")
	ErrRequestExpired      = errors.New("delivery request expired")

	// Business errors
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoDropOffs        = errors.New("delivery has no drop-offs")
	ErrRiderUnavailable  = errors.New("rider is not available")
)

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Common API errors
func NotFound(resource string) *APIError {
	return NewAPIError("not_found", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func BadRequest(message string) *APIError {
	return NewAPIError("bad_request", message, http.StatusBadRequest)
}

func Conflict(message string) *APIError {
	return NewAPIError("conflict", message, http.StatusConflict)
}

func InternalError(message string) *APIError {
	return NewAPIError("internal_error", message, http.StatusInternalServerError)
}

func Unauthorized(message string) *APIError {
	return NewAPIError("unauthorized", message, http.StatusUnauthorized)
}

func DuplicateResponse() *APIError {
	return NewAPIError("duplicate_response", "you have already responded to this delivery request", http.StatusConflict)
}

func AlreadyClaimed() *APIError {
	return NewAPIError("already_claimed", "another rider accepted this delivery first", http.StatusConflict)
}

func NotEarliestAcceptor() *APIError {
	return NewAPIError("not_earliest_acceptor", "another rider accepted this delivery first", http.StatusConflict)
}

func RequestExpired() *APIError {
	return NewAPIError("request_expired", "this delivery request has expired", http.StatusGone)
}

func InvalidTransition(from, to string) *APIError {
	return NewAPIError("invalid_transition", fmt.Sprintf("cannot transition from %s to %s", from, to), http.StatusBadRequest)
}

func RiderUnavailable() *APIError {
	return NewAPIError("rider_unavailable", "rider is not available for new deliveries", http.StatusConflict)
}
