// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for AuditPilot components.
//
// The logger is built on the standard library slog package. By default it
// writes human-readable output to stderr, following Unix CLI conventions;
// a log directory may be configured to additionally capture JSON logs to
// a per-service file for later audit.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("session started", "session_id", id)
//
// # File Logging
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    LogDir:  "~/.auditpilot/logs",
//	    Service: "auditpilot",
//	})
//	defer logger.Close()
//
// # Thread Safety
//
// Logger is safe for concurrent use.
//
// # Security Considerations
//
// This package does not redact sensitive data; callers must not log
// credentials, tokens, or raw personal data from the ledger.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level represents log severity, ordered Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// toSlogLevel maps Level onto slog's level scale.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity emitted.
	Level Level

	// LogDir enables JSON file logging when non-empty. Supports a
	// leading ~ for the home directory. The directory is created if
	// missing.
	LogDir string

	// Service names the log file: {service}_{date}.log.
	Service string
}

// Logger wraps slog with optional file capture.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
}

// New creates a logger from the config.
//
// Description:
//
//	Always writes text logs to stderr. When LogDir is set, JSON logs are
//	additionally written to {LogDir}/{Service}_{date}.log; a file that
//	cannot be opened degrades to stderr-only with a warning rather than
//	failing construction.
func New(config Config) *Logger {
	if config.Service == "" {
		config.Service = "auditpilot"
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}

	var file *os.File
	if config.LogDir != "" {
		dir := expandPath(config.LogDir)
		name := fmt.Sprintf("%s_%s.log", config.Service, time.Now().Format("2006-01-02"))
		if err := os.MkdirAll(dir, 0o755); err == nil {
			f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err == nil {
				file = f
				handlers = append(handlers, slog.NewJSONHandler(f, opts))
			}
		}
		if file == nil {
			fmt.Fprintf(os.Stderr, "logging: could not open log file in %s, using stderr only\n", dir)
		}
	}

	var handler slog.Handler = handlers[0]
	if len(handlers) > 1 {
		handler = &multiHandler{handlers: handlers}
	}

	return &Logger{
		slogger: slog.New(handler).With("service", config.Service),
		file:    file,
	}
}

// Default returns a stderr-only logger at Info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slogger.Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.slogger.Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slogger.Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.slogger.Error(msg, args...) }

// With returns a logger carrying additional attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slogger: l.slogger.With(args...), file: l.file}
}

// Slog exposes the underlying slog.Logger for collaborators that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// multiHandler fans one record out to several slog handlers.
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
	var firstErr error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// expandPath resolves a leading ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
