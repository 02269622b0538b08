package errors

import (
	"errors"
	"fmt"
)

// APIError represents a non-2xx response from an upstream API. The raw
// response body is carried verbatim so callers can surface it unmodified.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Body       string `json:"body,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream error %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// NewAPIError builds an APIError from a response status line and raw body.
func NewAPIError(statusCode int, status, body string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}

// IsAPIError reports whether err wraps an APIError and returns it if so.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
