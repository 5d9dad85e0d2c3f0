package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any APIError carrying the same code, so detailed copies of a
// sentinel still satisfy errors.Is.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput   = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrInvalidRequest = NewAPIError("INVALID_REQUEST", "Invalid discovery request", http.StatusBadRequest)
	ErrUnauthorized   = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound       = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal       = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrConflict       = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrUnavailable    = NewAPIError("SERVICE_UNAVAILABLE", "Service unavailable", http.StatusServiceUnavailable)
)

// WithDetails returns a copy of e carrying the given details.
func (e *APIError) WithDetails(format string, args ...any) *APIError {
	return NewAPIError(e.Code, e.Message, e.Status, fmt.Sprintf(format, args...))
}

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}
