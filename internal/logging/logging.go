// ABOUTME: Builds the process logger: colour text for terminals, JSON for collectors
// ABOUTME: Adds a critical level above error for conditions that stop a session

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LevelCritical marks conditions that permanently stop a session.
const LevelCritical = slog.LevelError + 4

// Options selects the logger's level, format and destination.
type Options struct {
	Level  string // debug, info, warn, error, critical
	Format string // text (default) or json
	File   string // log file path; stdout when empty

	// Writer overrides File and stdout.
	Writer io.Writer
}

// ParseLevel maps a level name to its slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical", "crit":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// New creates a logger. The returned closer releases the log file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)

	out := opts.Writer
	var closer io.Closer = nopCloser{}
	if out == nil {
		out = os.Stdout
		if opts.File != "" {
			if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
				return nil, nil, fmt.Errorf("creating log directory: %w", err)
			}
			f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("opening log file: %w", err)
			}
			out, closer = f, f
		}
	}

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceLevel,
		})
	} else {
		handler = newColorHandler(out, level)
	}

	return slog.New(handler), closer, nil
}

// Critical logs msg at LevelCritical.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelCritical, msg, args...)
}

// replaceLevel renders LevelCritical as CRITICAL instead of ERROR+4.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey || len(groups) > 0 {
		return a
	}
	if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelCritical {
		return slog.String(slog.LevelKey, "CRITICAL")
	}
	return a
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
