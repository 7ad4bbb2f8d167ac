package model

import (
	"errors"
	"fmt"
	"net/http"
)

// API error codes surfaced to clients
const (
	CodeNotFound             = "NOT_FOUND"
	CodeInvalidPrecondition  = "INVALID_PRECONDITION"
	CodeExternalServiceError = "EXTERNAL_SERVICE_ERROR"
	CodeInternalError        = "INTERNAL_ERROR"
)

// APIError is the structured error returned from the audit API and carried
// through the orchestrator for fatal failures
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFound builds a NOT_FOUND error
func NewNotFound(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusNotFound,
	}
}

// NewInvalidPrecondition builds an INVALID_PRECONDITION error
func NewInvalidPrecondition(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeInvalidPrecondition,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadRequest,
	}
}

// NewExternalServiceError builds an EXTERNAL_SERVICE_ERROR error
func NewExternalServiceError(format string, args ...any) *APIError {
	return &APIError{
		Code:       CodeExternalServiceError,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadGateway,
	}
}

// AsAPIError extracts an APIError from err, wrapping unknown errors as an
// internal error so handlers always have a structured payload to return
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{
		Code:       CodeInternalError,
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
	}
}
