// Package obs provides the service's observability plumbing: the shared
// structured logger and the Prometheus HTTP/directory metrics.
package obs

import (
	"log/slog"
	"os"
)

// NewLogger builds the JSON structured logger used across the service and
// installs it as the slog default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
