package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Standard log keys
const (
	KeyComponent = "component"
	KeySymbol    = "symbol"
	KeyError     = "error"
)

// Config holds the configuration for the logger
type Config struct {
	FilePath   string
	Level      string // DEBUG, INFO, WARN, ERROR
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
}

// RollingFile returns a size-rotated file writer. Zero limits fall back to
// 100MB, 3 backups, 28 days.
func RollingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) *lumberjack.Logger {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	if w.MaxSize == 0 {
		w.MaxSize = 100
	}
	if w.MaxBackups == 0 {
		w.MaxBackups = 3
	}
	if w.MaxAge == 0 {
		w.MaxAge = 28
	}
	return w
}

// ParseLevel maps a level name to slog; unknown names mean INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON structured logger writing to cfg.FilePath, or stdout when
// no path is set.
func New(cfg Config) (*slog.Logger, error) {
	var w io.Writer = os.Stdout
	if cfg.FilePath != "" {
		w = RollingFile(cfg.FilePath, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(handler), nil
}

// Component tags l with a component name, defaulting to slog.Default().
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With(KeyComponent, name)
}
