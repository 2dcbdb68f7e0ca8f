package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jobmill/jobmill/pkg/jobs"
)

// AppError is the application error contract carried from handlers to the
// response writer.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MapError maps application errors to HTTP responses. Storage detail never
// leaks to clients; unknown errors collapse into a generic 500.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := getRequestID(ctx)

	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ErrorResponse{
			Error:     errorCategory(status),
			Code:      appErr.Code,
			Message:   appErr.Message,
			RequestID: requestID,
			Details:   appErr.Details,
		}
	}

	switch {
	case errors.Is(err, jobs.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:     "not_found",
			Code:      "resource.not_found",
			Message:   "job not found",
			RequestID: requestID,
		}
	case errors.Is(err, jobs.ErrValidation), errors.Is(err, jobs.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorResponse{
			Error:     "validation_error",
			Code:      "validation.failed",
			Message:   err.Error(),
			RequestID: requestID,
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_server_error",
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		}
	}
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value("request_id").(string); ok {
		return id
	}
	return ""
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Code:       "validation.failed",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:       "resource.not_found",
		Message:    message,
		HTTPStatus: http.StatusNotFound,
	}
}

// NewInternalError creates a new internal error with optional cause.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       "internal.error",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

func errorCategory(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal_server_error"
		}
		return "application_error"
	}
}
