// Package errors defines the error taxonomy of the commerce client and its
// HTTP rendering. Every category is recoverable: errors are caught at the
// boundary of the component that triggered the operation and converted into
// user-visible, dismissible notifications.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Category classifies an error for boundary handling.
type Category string

const (
	// CategoryValidation is a local schema violation. Field-scoped, blocks
	// stage advance, displayed inline.
	CategoryValidation Category = "validation"
	// CategorySubmission is a server-rejected request. Blocks advance, may
	// carry field-scoped messages from the server.
	CategorySubmission Category = "submission"
	// CategorySync is a failed cart mutation round-trip. Triggers local
	// rollback to the last known-good snapshot.
	CategorySync Category = "sync"
	// CategoryCapability is an unavailable collaborator capability
	// (clipboard, bot verification). Surfaced as a transient notification.
	CategoryCapability Category = "capability"
	// CategoryScopeMismatch is a license type incompatible with the product
	// scope. An invariant violation that must fail loudly rather than price
	// incorrectly.
	CategoryScopeMismatch Category = "scope_mismatch"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Category   Category    `json:"category,omitempty"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
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

// ValidationError is one field-scoped validation failure.
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

// NewWithCategory creates an APIError tagged with a taxonomy category.
func NewWithCategory(statusCode int, errorCode, message string, category Category) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Category:   category,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")

	// 404 Not Found
	ErrNotFound         = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrCartItemNotFound = New(http.StatusNotFound, "CART_ITEM_NOT_FOUND", "Cart item not found")

	// 409 Conflict
	ErrSubmissionInFlight = New(http.StatusConflict, "SUBMISSION_IN_FLIGHT", "A submission for this checkout stage is already in progress")
	ErrStageOrder         = New(http.StatusConflict, "STAGE_ORDER", "Checkout stages must be completed in order")

	// 422 Unprocessable Entity
	ErrScopeMismatch = NewWithCategory(http.StatusUnprocessableEntity, "LICENSE_SCOPE_MISMATCH", "License type is not valid for this product", CategoryScopeMismatch)

	// 502 Bad Gateway
	ErrBackendUnavailable = New(http.StatusBadGateway, "BACKEND_UNAVAILABLE", "Storefront backend is unreachable")

	// 503 Service Unavailable
	ErrClipboardUnavailable = NewWithCategory(http.StatusServiceUnavailable, "CLIPBOARD_UNAVAILABLE", "Clipboard is not available", CategoryCapability)
	ErrVerifyNotInitialized = NewWithCategory(http.StatusServiceUnavailable, "VERIFICATION_NOT_INITIALIZED", "Bot verification is not initialized", CategoryCapability)
	ErrVerifyFailed         = NewWithCategory(http.StatusServiceUnavailable, "VERIFICATION_FAILED", "Bot verification failed", CategoryCapability)
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	e := NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
	e.Category = CategoryValidation
	return e
}

// NotFoundError creates a not found error with details
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), resource)
}

// SyncError creates a cart synchronization error. The store has already
// rolled back to its pre-mutation snapshot when this surfaces.
func SyncError(operation string, err error) *APIError {
	e := NewWithDetails(http.StatusBadGateway, "CART_SYNC_FAILED", fmt.Sprintf("Cart %s could not be synchronized", operation), err.Error())
	e.Category = CategorySync
	return e
}

// SubmissionError creates a checkout submission error, optionally carrying
// field-scoped messages relayed from the backend.
func SubmissionError(stage string, fields []ValidationError, err error) *APIError {
	details := map[string]interface{}{"stage": stage}
	if err != nil {
		details["error"] = err.Error()
	}
	if len(fields) > 0 {
		details["fields"] = fields
	}
	e := NewWithDetails(http.StatusBadGateway, "SUBMISSION_FAILED", fmt.Sprintf("Checkout %s submission was rejected", stage), details)
	e.Category = CategorySubmission
	return e
}

// CapabilityError creates an error for an unavailable platform capability.
func CapabilityError(capability string, err error) *APIError {
	e := NewWithDetails(http.StatusServiceUnavailable, "CAPABILITY_UNAVAILABLE", fmt.Sprintf("%s is unavailable", capability), err.Error())
	e.Category = CategoryCapability
	return e
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	e := NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
	e.Category = CategoryValidation
	return e
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}
