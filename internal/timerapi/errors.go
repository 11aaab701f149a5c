package timerapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotAuthenticated is reported for 401 responses.
	ErrNotAuthenticated = errors.New("timerapi: not authenticated")
	// ErrSessionNotFound is reported for 404 responses.
	ErrSessionNotFound = errors.New("timerapi: session not found")
	// ErrSessionCompleted is reported for 409 responses.
	ErrSessionCompleted = errors.New("timerapi: session completed")
	// ErrValidation is reported for 422 responses.
	ErrValidation = errors.New("timerapi: validation failed")
)

// APIError is a decoded non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Message     string
	FieldErrors map[string]string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("timerapi: status %d", e.StatusCode)
	}
	return fmt.Sprintf("timerapi: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes the sentinel matching the status code.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrNotAuthenticated
	case http.StatusNotFound:
		return ErrSessionNotFound
	case http.StatusConflict:
		return ErrSessionCompleted
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return ErrValidation
	}
	return nil
}

// IsTransient reports whether err is worth retrying on the next tick:
// transport failures and server-side 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
