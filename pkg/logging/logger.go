// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the slog loggers used by the revdep CLI and
// server.
//
// Reports go to stdout, so logs default to stderr, following Unix
// conventions. An optional log file receives a JSON copy of every record
// at the same level, which is useful when the server runs unattended:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    File:    "~/.cache/revdep/serve.log",
//	    Service: "revdep-serve",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnknownLevel is returned by ParseLevel.
var ErrUnknownLevel = errors.New("unknown log level")

// ErrUnknownFormat is returned by New for a format other than text or json.
var ErrUnknownFormat = errors.New("unknown log format")

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug traces execution: files parsed, cache lookups.
	LevelDebug Level = iota

	// LevelInfo reports significant events: server start, cache invalidation.
	LevelInfo

	// LevelWarn reports recoverable problems: skipped ignore patterns,
	// degraded cache.
	LevelWarn

	// LevelError reports failed operations.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

// Config configures a Logger. The zero value writes Info and above to
// stderr as text.
type Config struct {
	// Level is the minimum level written.
	Level Level

	// Format is "text" (default) or "json" for the console handler. The
	// file handler always writes JSON.
	Format string

	// File, when set, also appends JSON records to this path. Parent
	// directories are created; a leading ~ is expanded.
	File string

	// Service is attached to every record as service=<name>.
	Service string

	// Writer replaces stderr as the console destination.
	Writer io.Writer

	// Quiet disables the console handler. Ignored when File is empty.
	Quiet bool
}

// Logger owns a slog.Logger and the log file behind it, if any.
type Logger struct {
	slog *slog.Logger
	file *os.File

	mu     sync.Mutex
	closed bool
}

// New creates a logger.
//
// # Outputs
//
//   - *Logger: Ready to use. Call Close to release the log file.
//   - error: ErrUnknownFormat, or the error opening File.
func New(config Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}
	out := config.Writer
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	switch strings.ToLower(config.Format) {
	case "", "text":
		console = slog.NewTextHandler(out, opts)
	case "json":
		console = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, config.Format)
	}

	logger := &Logger{}
	var handlers []slog.Handler
	if !config.Quiet || config.File == "" {
		handlers = append(handlers, console)
	}

	if config.File != "" {
		path := expandPath(config.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler = &multiHandler{handlers: handlers}
	if len(handlers) == 1 {
		handler = handlers[0]
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger, nil
}

// Slog returns the underlying slog.Logger for passing to other packages.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.file == nil {
		l.closed = true
		return nil
	}
	l.closed = true

	syncErr := l.file.Sync()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync log file: %w", syncErr)
	}
	return nil
}

// Discard returns a logger that drops every record. Used by tests and by
// library callers that want silence.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
