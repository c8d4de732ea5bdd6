// Package logging installs a charmbracelet/log handler as the slog default.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// New creates a slog logger writing to w. format is "json", "logfmt" or "text";
// level is any level understood by charmbracelet/log ("debug", "info", ...).
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var formatter log.Formatter
	switch strings.ToLower(format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	case "text", "":
		formatter = log.TextFormatter
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	return slog.New(handler), nil
}

// Setup installs a logger built by New as the slog default
func Setup(w io.Writer, format, level string) error {
	logger, err := New(w, format, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
