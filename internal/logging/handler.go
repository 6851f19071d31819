package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ConsoleHandler is a slog.Handler producing lines like
//
//	[INFO ] Compressed 2 files, total size: 312B
//	[WARN ] Cannot write file to ZIP archive path=src/x.rs error="..."
type ConsoleHandler struct {
	level  slog.Leveler
	w      io.Writer
	mu     *sync.Mutex
	styles map[slog.Level]lipgloss.Style
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler creates a handler for cfg.
func NewConsoleHandler(cfg Config) *ConsoleHandler {
	renderer := lipgloss.NewRenderer(cfg.Writer)
	if !cfg.Color {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &ConsoleHandler{
		level: cfg.Level,
		w:     cfg.Writer,
		mu:    &sync.Mutex{},
		styles: map[slog.Level]lipgloss.Style{
			slog.LevelDebug: renderer.NewStyle().Foreground(lipgloss.Color("4")),
			slog.LevelInfo:  renderer.NewStyle().Foreground(lipgloss.Color("2")),
			slog.LevelWarn:  renderer.NewStyle().Foreground(lipgloss.Color("3")),
			slog.LevelError: renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(h.renderLevel(r.Level))
	b.WriteString("] ")
	b.WriteString(r.Message)

	prefix := strings.Join(h.groups, ".")
	for _, attr := range h.attrs {
		writeAttr(&b, "", attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, prefix, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	prefix := strings.Join(h.groups, ".")
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), qualify(prefix, attrs)...)
	return &clone
}

func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// renderLevel pads outside the style so escape codes never swallow the padding.
func (h *ConsoleHandler) renderLevel(level slog.Level) string {
	name := levelName(level)
	padding := strings.Repeat(" ", 5-len(name))
	style, ok := h.styles[level]
	if !ok {
		return name + padding
	}
	return style.Render(name) + padding
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func qualify(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = slog.Attr{Key: prefix + "." + attr.Key, Value: attr.Value}
	}
	return out
}

func writeAttr(b *strings.Builder, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if prefix != "" {
		key = prefix + "." + key
	}

	if attr.Value.Kind() == slog.KindGroup {
		for _, sub := range attr.Value.Group() {
			writeAttr(b, key, sub)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(formatValue(attr.Value.String()))
}

func formatValue(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
