// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// Custom log levels extending slog's standard levels.
const (
	// LevelTrace is more verbose than Debug, used for detailed tracing
	// (e.g., health probe responses, spawn environments).
	LevelTrace = slog.Level(-8)
)

// Standard field keys for structured logging.
// These constants ensure consistent field naming across the codebase.
const (
	// InvocationIDKey is the field key for supervisor invocation identifiers.
	InvocationIDKey = "invocation_id"
	// RoleKey is the field key for managed process roles.
	RoleKey = "role"
	// PIDKey is the field key for process IDs.
	PIDKey = "pid"
	// StateKey is the field key for lifecycle states.
	StateKey = "state"
	// EventKey is the field key for event types.
	EventKey = "event"
	// DurationKey is the field key for duration in milliseconds.
	DurationKey = "duration_ms"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Default: info
	Level string

	// Format sets the output format (json, text).
	// Default: text
	Format Format

	// Output is the writer for log output.
	// Default: os.Stderr
	Output io.Writer

	// AddSource adds source file and line information to logs.
	// Default: false
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:     "info",
		Format:    FormatText,
		Output:    os.Stderr,
		AddSource: false,
	}
}

// FromEnv creates a Config from environment variables.
// Supported environment variables:
//   - CONDUIT_DEBUG: true/1 to enable debug level and source logging (takes precedence)
//   - CONDUIT_LOG_LEVEL: debug, info, warn, error (takes precedence over LOG_LEVEL)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, text (default: text)
//   - LOG_SOURCE: 1 to enable source file/line (default: 0)
func FromEnv() *Config {
	cfg := DefaultConfig()

	// CONDUIT_DEBUG enables debug logging and source information
	debug := os.Getenv("CONDUIT_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	// CONDUIT_LOG_LEVEL takes precedence over LOG_LEVEL (but not CONDUIT_DEBUG)
	if debug == "" {
		if level := os.Getenv("CONDUIT_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		} else if level := os.Getenv("LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}

	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// New creates a new structured logger from the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Parse log level
	level := parseLevel(cfg.Level)

	// Create handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	// Select handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	case FormatText:
		fallthrough
	default:
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NormalizeLevel maps a user-supplied level string to the canonical form
// propagated to managed processes. Unknown values fall back to "info".
func NormalizeLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace":
		return "trace"
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}

// WithComponent returns a new logger with a component name field.
// Component names help identify which part of the system generated the log.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithInvocation returns a new logger carrying the supervisor invocation ID.
// Every log line from a single up/down run shares the same ID.
func WithInvocation(logger *slog.Logger, invocationID string) *slog.Logger {
	return logger.With(slog.String(InvocationIDKey, invocationID))
}

// WithRole returns a new logger scoped to a managed process role.
func WithRole(logger *slog.Logger, role string) *slog.Logger {
	return logger.With(slog.String(RoleKey, role))
}

// Attr creates a new attribute with the given key and value.
func Attr(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// String creates a string attribute.
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Int creates an int attribute.
func Int(key string, value int) slog.Attr {
	return slog.Int(key, value)
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) slog.Attr {
	return slog.Int64(key, value)
}

// Bool creates a bool attribute.
func Bool(key string, value bool) slog.Attr {
	return slog.Bool(key, value)
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value int64) slog.Attr {
	return slog.Int64(key+"_ms", value)
}

// SanitizeAPIKey masks an API key, showing only the last 4 characters.
// This prevents accidental credential leakage in logs.
// Returns "[REDACTED]" if the key is shorter than 4 characters.
func SanitizeAPIKey(key string) string {
	if len(key) <= 4 {
		return "[REDACTED]"
	}
	return "..." + key[len(key)-4:]
}

// SanitizeSecret completely redacts a secret value.
// This should be used for any sensitive data that should never appear in logs.
func SanitizeSecret(secret string) string {
	return "[REDACTED]"
}

// Trace logs a message at trace level with optional attributes.
// This is used for highly verbose debugging output like probe responses.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
