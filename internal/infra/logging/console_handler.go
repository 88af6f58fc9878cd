package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiYel   = "\033[33m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
)

// ConsoleHandler implements slog.Handler with a compact, coloured single-line
// format meant for terminals during development.
type ConsoleHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Leveler

	preformatted []byte // attrs added with WithAttrs, already rendered
	prefix       string // open groups joined by "."
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a ConsoleHandler writing to out.
func NewConsoleHandler(out io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{out: out, mu: new(sync.Mutex), level: level}
}

// Enabled implements slog.Handler.Enabled.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)

	buf.WriteString(ansiGray + r.Time.Format("15:04:05.000") + ansiReset + " ")
	buf.WriteString(levelColour(r.Level) + padLevel(r.Level.String()) + ansiReset + " ")
	buf.WriteString(r.Message)

	if len(h.preformatted) > 0 || r.NumAttrs() > 0 {
		buf.WriteString(ansiGray + " |" + ansiReset)
		buf.Write(h.preformatted)

		r.Attrs(func(a slog.Attr) bool {
			appendAttr(buf, h.prefix, a)

			return true
		})
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		buf.WriteString(ansiGray + " (" + filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line) + ")" + ansiReset)
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.out.Write(buf.Bytes())

	return err //nolint:wrapcheck
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	buf := bytes.NewBuffer(append([]byte(nil), h.preformatted...))

	for _, a := range attrs {
		appendAttr(buf, h.prefix, a)
	}

	clone := *h
	clone.preformatted = buf.Bytes()

	return &clone
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.prefix = h.prefix + name + "."

	return &clone
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()

	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix
		if a.Key != "" {
			groupPrefix += a.Key + "."
		}

		for _, ga := range a.Value.Group() {
			appendAttr(buf, groupPrefix, ga)
		}

		return
	}

	buf.WriteString(" " + prefix + a.Key + "=" + ansiGray + strconv.Quote(a.Value.String()) + ansiReset)
}

func levelColour(level slog.Level) string {
	switch {
	case level >= LevelError:
		return ansiRed
	case level >= LevelWarn:
		return ansiYel
	case level >= LevelInfo:
		return ansiGreen
	default:
		return ansiCyan
	}
}

func padLevel(s string) string {
	for len(s) < 5 {
		s += " "
	}

	return s
}
