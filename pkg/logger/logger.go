package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger tagged with the binary's service name
// so api and migrate output can be told apart in aggregated logs.
// Components receive it explicitly; nothing logs through slog.Default.
func New(service string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}
