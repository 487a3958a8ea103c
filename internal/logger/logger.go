// Package logger owns the process-wide slog instance. Components never
// build their own handlers; they derive children with With.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/amoradev/amora/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config controls the global logger. Zero values mean text output at
// info level with no component field.
type Config struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
}

var current atomic.Pointer[slog.Logger]

// InitFromConfig initializes the global logger from app config.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Config{
		Level:      c.Log.Level,
		Format:     Format(c.Log.Format),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
	})
}

// Init sets up the global logger. Safe to call more than once; the
// latest call wins.
func Init(c *Config) {
	if c == nil {
		c = &Config{}
	}
	l := slog.New(newHandler(*c))
	if c.Component != "" {
		l = l.With("component", c.Component)
	}
	current.Store(l)
}

// L returns the global logger, initializing a default one on first use.
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init(nil)
	return current.Load()
}

// With creates a child logger with additional attributes.
func With(args ...any) *slog.Logger { return L().With(args...) }

func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any)  { L().Info(msg, args...) }
func Warn(msg string, args ...any)  { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }

func newHandler(c Config) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(c.Level),
		AddSource: c.WithSource,
	}
	if strings.EqualFold(string(c.Format), string(FormatJSON)) {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	// text output carries a fixed wall-clock stamp instead of RFC 3339
	opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
			return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
		}
		return a
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
