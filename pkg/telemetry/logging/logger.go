package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler behind a Logger.
type Config struct {
	// Level is the minimum level emitted: debug, info, warn, error.
	// Empty means info.
	Level string

	// Format is "json" or "text". Empty means json.
	Format string

	// AddSource annotates records with file and line.
	AddSource bool

	// Writer receives the output. Nil means os.Stderr.
	Writer io.Writer
}

// Logger is the structured logger handed through the handshake stack.
// Identity fields (server, conn_id) are attached once via WithServer
// and WithConn and carried by every record after that.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from the configuration. Unknown levels or
// formats are rejected rather than silently defaulted.
func New(cfg Config) (*Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "", "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(w, opts)
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return &Logger{slog: slog.New(h)}, nil
}

// Discard returns a logger that drops every record. It stands in
// wherever a caller passes a nil logger.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) log(level slog.Level, msg string, args []any) {
	l.slog.Log(context.Background(), level, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// With returns a logger carrying additional key/value fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// WithServer returns a logger carrying the virtual host identity.
func (l *Logger) WithServer(name string) *Logger {
	return l.With("server", name)
}

// WithConn returns a logger carrying the connection identity.
func (l *Logger) WithConn(id string) *Logger {
	return l.With("conn_id", id)
}
