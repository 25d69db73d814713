package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/rendez-vous/internal/logging"
	"github.com/example/rendez-vous/internal/scheduling"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		return "validation"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound), errors.Is(err, scheduling.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, scheduling.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, scheduling.ErrImmutableField):
		return "immutable_field"
	case errors.Is(err, scheduling.ErrInvalidDate):
		return "invalid_date"
	case errors.Is(err, scheduling.ErrAlreadyScheduled):
		return "already_scheduled"
	case errors.Is(err, scheduling.ErrNotEditable):
		return "not_editable"
	}
	return "unexpected"
}
