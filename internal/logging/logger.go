// Package logging defines the structured-logging interface used across the
// server and its two backends: log/slog and rs/zerolog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "upload stored", "owner", owner, "handle", handle)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// Supported output formats.
const (
	FormatJSON    = "json"
	FormatZerolog = "zerolog"
	FormatConsole = "console"
)

// New builds a Logger writing to w. "json" uses slog's JSON handler,
// "zerolog" writes zerolog JSON and "console" the zerolog human-readable form.
func New(format, level string, w io.Writer) (Logger, error) {
	format = strings.ToLower(format)
	switch format {
	case "", FormatJSON:
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(levelOrDefault(level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
		return NewSlogLogger(slog.New(h)), nil
	case FormatZerolog, FormatConsole:
		lvl, err := zerolog.ParseLevel(strings.ToLower(levelOrDefault(level)))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		if format == FormatConsole {
			w = zerolog.ConsoleWriter{Out: w}
		}
		zl := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
		return NewZerologLogger(zl), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
