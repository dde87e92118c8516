// Package obs contains observability utilities such as logging.
package obs

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON structured logger writing to w at the given level.
// A nil writer means stdout.
func New(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Discard returns a logger that drops everything. Tests and optional
// collaborators fall back to it when no logger is supplied.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
