package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors
var (
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingUser      = New(http.StatusUnauthorized, "MISSING_USER", "The X-User-ID header is required")

	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrJobNotFound    = New(http.StatusNotFound, "JOB_NOT_FOUND", "Upload job not found")
	ErrUploadNotFound = New(http.StatusNotFound, "UPLOAD_NOT_FOUND", "Upload not found")

	ErrFileTooLarge      = New(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "The uploaded file exceeds the maximum allowed size")
	ErrUnreadableSheet   = New(http.StatusUnprocessableEntity, "UNREADABLE_SHEET", "The uploaded file is not a readable workbook")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")

	ErrInvalidFormat = New(http.StatusBadRequest, "INVALID_FORMAT", "format must be json or csv")

	ErrQueueFull = New(http.StatusServiceUnavailable, "QUEUE_FULL", "Too many uploads are waiting, try again later")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// UnknownUploadType reports an upload type with no registered definition.
func UnknownUploadType(typ string) *APIError {
	return NewWithDetails(http.StatusNotFound, "UNKNOWN_UPLOAD_TYPE", fmt.Sprintf("Upload type %s is not known", typ), typ)
}

// UnreadableSheet wraps the reason a workbook could not be opened.
func UnreadableSheet(err error) *APIError {
	return NewWithDetails(ErrUnreadableSheet.StatusCode, ErrUnreadableSheet.ErrorCode, ErrUnreadableSheet.Message, err.Error())
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", errs)
}

// WriteError writes an error response outside of the chi render flow.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(err)
}
