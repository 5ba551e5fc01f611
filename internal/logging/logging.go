// Package logging wires log/slog to stderr and an optional rotating file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and the optional file sink
type Config struct {
	// Verbose is the -v count: 0=info, 1 and above=debug.
	Verbose int
	// Level overrides Verbose when set (debug, info, warn, error).
	Level string

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup builds a text logger writing to w and, when cfg.File is set, to a
// rotating file as well. The returned closer flushes the file sink.
func Setup(cfg Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	level := levelFor(cfg.Verbose)
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, err
		}
		// An explicit -v still wins over the configured level.
		if cfg.Verbose == 0 {
			level = parsed
		}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		w = io.MultiWriter(w, rotator)
		closer = rotator
	}

	// Configure text handler for clean terminal output
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer, nil
}

// ParseLevel maps a config string to a slog level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

func levelFor(verbose int) slog.Level {
	if verbose >= 1 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
