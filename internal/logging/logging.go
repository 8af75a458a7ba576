// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger shared by every component.
//
// Logs go to a file, never to the terminal: the TUI owns the screen and the
// REPL owns stdout. Lines pass through a redacting writer so an API key that
// ends up in an error message is not written to disk.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/revise-tui/internal/config"
)

// DefaultFileName is the log file name inside the config directory.
const DefaultFileName = "revise.log"

// =============================================================================
// SECRET REDACTION
// =============================================================================

// redactPatterns match bearer tokens and provider keys.
var redactPatterns = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`), "Bearer [REDACTED]"},
	{regexp.MustCompile(`sk-[A-Za-z0-9\-_]{16,}`), "[API_KEY_REDACTED]"},
}

// Redact replaces anything that looks like a credential.
func Redact(s string) string {
	for _, r := range redactPatterns {
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return s
}

// redactingWriter scrubs each log line before passing it on.
type redactingWriter struct {
	w io.Writer
}

func (r redactingWriter) Write(p []byte) (int, error) {
	clean := Redact(string(p))
	if _, err := io.WriteString(r.w, clean); err != nil {
		return 0, err
	}
	// Report the input length so zerolog does not treat redaction as a short write.
	return len(p), nil
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New returns a logger configured by cfg and a function that closes its file.
// Level "disabled" returns a no-op logger and opens nothing.
func New(cfg config.LogConfig) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if level == zerolog.Disabled {
		return zerolog.Nop(), noop, nil
	}

	path, err := Path(cfg)
	if err != nil {
		return zerolog.Nop(), noop, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("failed to create log directory: %w", err)
	}

	// SECURITY: Log files are owner read/write only.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWithWriter(file, level), file.Close, nil
}

// NewWithWriter returns a redacting JSON logger writing to w.
func NewWithWriter(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(redactingWriter{w: w}).
		Level(level).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}

// Path returns the log file the config selects.
func Path(cfg config.LogConfig) (string, error) {
	if cfg.File != "" {
		return cfg.File, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFileName), nil
}
