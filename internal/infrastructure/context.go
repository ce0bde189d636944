package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NewRunID creates a unique run id
func NewRunID() string {
	return uuid.New().String()
}

// EnsureRunID returns ctx with a run id, generating one if needed
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id := RunID(ctx); id != "" {
		return ctx, id
	}
	id := NewRunID()
	return WithRunID(ctx, id), id
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", component)
}
