// Package logger configures slog for the Rewire server: coloured, human-readable
// output in development and JSON in production.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	formatJSON   = "json"
	formatPretty = "pretty"
)

// Logger wraps slog.Logger with a few field helpers.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer // default: stdout
	Format      string    // "json" or "pretty"; empty picks by Environment
	Environment string
	Level       slog.Level
	AddSource   bool
}

// New creates a logger. Production defaults to JSON, everything else to the
// pretty handler.
func New(cfg Config) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}

	format := cfg.Format
	if format == "" {
		format = formatPretty
		if cfg.Environment == "production" {
			format = formatJSON
		}
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: shortSource,
	}

	var h slog.Handler
	if format == formatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = NewPrettyHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// shortSource trims source paths to the file name.
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok {
		src.File = filepath.Base(src.File)
	}
	return a
}

// ParseLevel maps a level name to slog.Level. Unknown names mean Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithError adds an error attribute. A nil error adds nothing.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.With(slog.String("error", err.Error()))}
}

// WithField adds a single field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(slog.Any(key, value))}
}

// WithFields adds every entry of fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// WithUser scopes the logger to a device user.
func (l *Logger) WithUser(userID string) *Logger {
	return l.WithField("user_id", userID)
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// Fatal logs at Error and exits the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	os.Exit(1)
}
