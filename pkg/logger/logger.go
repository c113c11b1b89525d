// Package logger builds the *slog.Logger used across mnemo.
//
// Services log JSON, the CLI logs through the charmbracelet/log handler when
// attached to a terminal, and everything else falls back to slog's text
// handler. Every handler is wrapped so that attributes carrying credentials
// (postgres DSNs, vector store API keys) never reach the output.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// DefaultRedactKeys are the attribute keys whose values are always masked.
var DefaultRedactKeys = []string{"api_key", "postgres_dsn", "dsn", "password", "token"}

type config struct {
	level   slog.Level
	pretty  bool
	json    bool
	source  bool
	writers []io.Writer
	redact  []string
}

// New creates a *slog.Logger configured by opts.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, redact: DefaultRedactKeys}
	for _, opt := range opts {
		opt(c)
	}

	return slog.New(Redacting(c.handler(), c.redact...))
}

func (c *config) handler() slog.Handler {
	var w io.Writer
	switch len(c.writers) {
	case 0:
		w = os.Stdout
	case 1:
		w = c.writers[0]
	default:
		w = io.MultiWriter(c.writers...)
	}

	switch {
	case c.json:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})

	case c.pretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(c.level),
			ReportTimestamp: true,
			ReportCaller:    c.source,
			TimeFormat:      time.Kitchen,
		})

	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
