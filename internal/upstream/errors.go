package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a structured error from the upstream DNS API.
type APIError struct {
	StatusCode int    `json:"-"`
	ErrorKey   string `json:"error"`
	Message    string `json:"message"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("upstream: %s: %s", e.ErrorKey, e.Message)
}

// Sentinel errors for common API error cases.
var (
	ErrUnauthorized = errors.New("upstream: unauthorized (invalid master key)")
	ErrNotFound     = errors.New("upstream: resource not found")
)

// parseError parses API error responses and returns an appropriate error.
func parseError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			apiErr.StatusCode = statusCode
			return &apiErr
		}
		return fmt.Errorf("upstream: request failed (status %d)", statusCode)
	}
}
