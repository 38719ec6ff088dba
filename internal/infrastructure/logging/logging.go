// Package logging configures the structured logger used across grcov,
// backing the --log and --log-level flags.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds a slog.Logger writing to out (or a file named by path if
// out is nil and path is non-empty) at the given level ("debug", "info",
// "warn", "error"; empty defaults to "info").
func New(path string, level string, out io.Writer) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if out != nil {
		w = out
	} else if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 - path comes from --log configuration
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return slog.New(handler), closer, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
