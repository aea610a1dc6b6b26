// Package logging configures the process-wide charm logger.
//
// The TUI owns the terminal, so by default logs go only to a rotating file.
// Commands that do not draw (serve, fetch, purge) also echo to stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls Setup.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Stderr     bool
	Prefix     string
}

// ParseLevel maps a config level name to a log level, defaulting to info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
}

// Setup points the default logger at the configured file (and stderr when
// asked) and returns a closer for main to defer.
func Setup(opts Options) (func() error, error) {
	log.SetOutput(io.Discard)

	var writers []io.Writer
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil { //nolint:gosec
			return closer, fmt.Errorf("unable to create log directory: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    max(opts.MaxSizeMB, 1),
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, rot)
		closer = rot.Close
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}
	if len(writers) == 0 {
		return closer, nil
	}

	log.SetDefault(New(io.MultiWriter(writers...), opts))
	return closer, nil
}
