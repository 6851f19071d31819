// Package logging builds the process logger: a log/slog logger writing
// level-prefixed console lines, with colored level names on terminals.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Config describes the process logger. It is built once by the entry point
// and is read-only afterwards.
type Config struct {
	Level  slog.Level
	Writer io.Writer
	Color  bool
}

// NewConfig returns a Config writing to w at the named level. Color is
// enabled when w is a terminal.
func NewConfig(level string, w io.Writer) (Config, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return Config{}, err
	}
	return Config{Level: lvl, Writer: w, Color: isTerminal(w)}, nil
}

// ParseLevel maps a level name (case-insensitive) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New creates a logger from cfg.
func New(cfg Config) *slog.Logger {
	return slog.New(NewConsoleHandler(cfg))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
