package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/focus-timer/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.OrDefault(logger)
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	return logging.Component(ctx, base, "service", serviceName, operation, attrs...)
}

// ErrorKind maps sentinel and validation errors to the error_kind label
// attached to failed operations.
func ErrorKind(err error) string {
	var vErr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionCompleted):
		return "session_completed"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.As(err, &vErr):
		return "validation"
	}
	return "unexpected"
}
