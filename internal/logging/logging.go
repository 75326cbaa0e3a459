// Package logging builds the slog loggers used by the svcrestarter
// executable: a console logger on stderr for foreground runs and a
// rotating file logger for managed runs, configured from the service's
// Parameters key.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	restarter "github.com/axondata/go-svcrestarter"
)

// LevelTrace is more verbose than slog.LevelDebug
const LevelTrace = slog.LevelDebug - 4

// Numeric levels stored in the LogLevel value
const (
	NumericError uint64 = iota + 1
	NumericWarn
	NumericInfo
	NumericDebug
	NumericTrace
)

// Rotation limits for the managed log file
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 5
)

const levelTraceStr = "TRACE"

// ParseLevel accepts trace, debug, info, warn and error, case-insensitively
func ParseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(strings.TrimSpace(s), levelTraceStr) {
		return LevelTrace, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NumericLevel maps a LogLevel value onto a slog level. Numbers outside
// 1..5 select the most verbose level.
func NumericLevel(n uint64) slog.Level {
	switch n {
	case NumericError:
		return slog.LevelError
	case NumericWarn:
		return slog.LevelWarn
	case NumericInfo:
		return slog.LevelInfo
	case NumericDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// New returns a text logger writing to w at level
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}))
}

// Console returns a logger on stderr
func Console(level slog.Leveler) *slog.Logger {
	return New(os.Stderr, level)
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// replaceLevel names LevelTrace, which slog would print as DEBUG-4
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	if l, ok := a.Value.Any().(slog.Level); ok && l <= LevelTrace {
		a.Value = slog.StringValue(levelTraceStr)
	}
	return a
}

// FileConfig is the managed-mode log destination
type FileConfig struct {
	// Path is the log file; rotated copies are kept alongside it
	Path string
	// Level is the minimum level written
	Level slog.Level
	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept
	MaxBackups int
}

// File returns a logger appending to cfg.Path. The returned closer
// releases the file.
func File(cfg FileConfig) (*slog.Logger, io.Closer) {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return New(w, cfg.Level), w
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FileConfigFromStore reads LogPath and LogLevel from the key at keyPath.
// ok is false when the key or LogPath does not exist, in which case the
// process runs without a log file.
func FileConfigFromStore(store restarter.ConfigStore, keyPath string) (cfg FileConfig, ok bool, err error) {
	k, err := store.OpenKey(keyPath, restarter.KeyRead)
	if errors.Is(err, restarter.ErrKeyNotFound) {
		return FileConfig{}, false, nil
	}
	if err != nil {
		return FileConfig{}, false, fmt.Errorf("open logging key %s: %w", keyPath, err)
	}
	defer func() { _ = k.Close() }()

	v, ok, err := restarter.ReadValueOptional(k, restarter.ValueLogPath)
	if err != nil || !ok {
		return FileConfig{}, false, err
	}
	var path string
	switch t := v.(type) {
	case restarter.StringValue:
		path = string(t)
	case restarter.ExpandStringValue:
		path = t.Expanded
	default:
		return FileConfig{}, false, &restarter.ValueError{
			Key: keyPath, Name: restarter.ValueLogPath, Type: v.Type(), Err: restarter.ErrUnexpectedValueType,
		}
	}

	n, ok, err := restarter.ReadIntegerOptional(k, restarter.ValueLogLevel)
	if err != nil {
		return FileConfig{}, false, err
	}
	if !ok {
		n = NumericError
	}

	return FileConfig{Path: path, Level: NumericLevel(n)}, true, nil
}

// FromStore returns the managed-mode logger configured under keyPath, or a
// discarding logger when no log file is configured.
func FromStore(store restarter.ConfigStore, keyPath string) (*slog.Logger, io.Closer, error) {
	cfg, ok, err := FileConfigFromStore(store, keyPath)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return Discard(), nopCloser{}, nil
	}
	logger, closer := File(cfg)
	return logger, closer, nil
}
