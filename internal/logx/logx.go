// Package logx builds the process logger.
package logx

import (
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

type Options struct {
	Level  slog.Level
	Format string // "text" or "json"
	// File is opened in append mode and replaces stderr when set.
	File string
	// Output overrides stderr, mostly for tests.
	Output io.Writer
}

// New returns the logger and a close function for the log file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closer := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		out, closer = f, f.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.Level <= slog.LevelDebug}
	var h slog.Handler
	switch opts.Format {
	case "", "text":
		h = slog.NewTextHandler(out, handlerOpts)
	case "json":
		h = slog.NewJSONHandler(out, handlerOpts)
	default:
		closer()
		return nil, nil, errors.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(h), closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
