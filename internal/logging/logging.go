// Package logging builds the process-wide *slog.Logger.
//
// The logger is created once in main and passed down to every component.
// Nothing in this module logs through slog's package-level default.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/github-scraper/internal/config"
)

// New returns a logger writing to out (and to cfg.File when set), plus a
// close func that releases the file. close is never nil.
//
// HANDLER CHOICE:
//
//	text → human-readable key=value lines for development
//	json → one JSON object per line for log shippers
func New(cfg config.Logging, out io.Writer) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, closeFn, fmt.Errorf("creating log directory %s: %w", dir, err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		out = io.MultiWriter(out, f)
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(out, opts)
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	default:
		_ = closeFn()
		return nil, func() error { return nil }, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(h), closeFn, nil
}
