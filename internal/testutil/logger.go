package testutil

import (
	"io"
	"log/slog"
)

// SilentLogger returns a logger that discards all output. Use in tests
// that exercise error paths where log noise would obscure failures.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
