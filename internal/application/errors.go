package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when no owner identity accompanies a request.
	ErrNotAuthenticated = errors.New("application: not authenticated")
	// ErrNotFound is returned when the requested resource does not exist or
	// belongs to another owner.
	ErrNotFound = errors.New("application: not found")
	// ErrSessionCompleted is returned when a transition targets a COMPLETED session.
	ErrSessionCompleted = errors.New("application: session already completed")
	// ErrAlreadyExists is returned when a write collides with an existing record.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed: %s", strings.Join(fields, ", "))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}
