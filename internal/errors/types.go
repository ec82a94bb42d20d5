package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeGateway    ErrorType = "GATEWAY_ERROR"
	ErrorTypeStore      ErrorType = "STORE_ERROR"
	ErrorTypeUpload     ErrorType = "UPLOAD_ERROR"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeFontLoad   ErrorType = "FONT_LOAD_ERROR"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the application
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	StatusCode    int       `json:"statusCode"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`

	// UpstreamStatus is the status code returned by a remote dependency, 0 if
	// the call never produced a response.
	UpstreamStatus int `json:"upstreamStatus,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// As extracts an *AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err is an *AppError of type t.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// NewValidationError creates a new validation error (400)
func NewValidationError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeValidation,
		Message:       message,
		StatusCode:    http.StatusBadRequest,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string, errorCode string, suggestion string) *AppError {
	return &AppError{
		Type:          ErrorTypeNotFound,
		Message:       message,
		StatusCode:    http.StatusNotFound,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      suggestion,
	}
}

// NewGatewayError creates a gateway error (502). upstream is the status code
// returned by the gateway, or 0 on transport failure.
func NewGatewayError(upstream int, errorCode string, err error) *AppError {
	msg := "gateway request failed"
	if upstream != 0 {
		msg = fmt.Sprintf("에러 발생: %d", upstream)
	}
	return &AppError{
		Type:           ErrorTypeGateway,
		Message:        msg,
		StatusCode:     http.StatusBadGateway,
		ErrorCode:      errorCode,
		IsOperational:  true,
		Recovery:       "Press the button again once the generation service is reachable.",
		Err:            err,
		UpstreamStatus: upstream,
	}
}

// NewStoreError creates a document store error (500)
func NewStoreError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeStore,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check the table name and AWS credentials.",
		Err:           err,
	}
}

// NewUploadError creates a blob upload error (500)
func NewUploadError(message string, errorCode string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeUpload,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     errorCode,
		IsOperational: true,
		Recovery:      "Check the bucket name and its write permissions.",
		Err:           err,
	}
}

// NewFontLoadError creates a font load error. It is not operational: the
// renderer cannot work without the font, so startup must stop.
func NewFontLoadError(path string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeFontLoad,
		Message:       fmt.Sprintf("failed to load font %q", path),
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     "FONT_LOAD_FAILED",
		IsOperational: false,
		Recovery:      "Place the font file next to the binary or set FONT_PATH.",
		Err:           err,
	}
}

// NewInternalError creates a generic internal error (500)
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		StatusCode:    http.StatusInternalServerError,
		ErrorCode:     "INTERNAL",
		IsOperational: false,
		Err:           err,
	}
}
