package common

import (
	"io"
	"log/slog"
	"os"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures the global slog logger.
type LoggerOptions struct {
	Level  slog.Level
	Format string
	// File enables rotated file logging alongside stderr when non-empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// SetupLogger configures the global logger with appropriate settings.
func SetupLogger(opts LoggerOptions) error {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 20
		}
		maxBackups := opts.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
