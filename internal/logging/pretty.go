// Package logging builds the process logger for the vectra CLI.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// PrettyHandlerOptions configures a PrettyHandler.
type PrettyHandlerOptions struct {
	SlogOpts slog.HandlerOptions
}

// PrettyHandler writes one colourised line per record:
// "[15:04:05.000] LEVEL: message {attrs as JSON}".
type PrettyHandler struct {
	opts   PrettyHandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*PrettyHandler)(nil)

// NewPrettyHandler creates a handler writing to out.
func NewPrettyHandler(out io.Writer, opts PrettyHandlerOptions) *PrettyHandler {
	return &PrettyHandler{opts: opts, out: out, mu: &sync.Mutex{}}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.SlogOpts.Level != nil {
		minLevel = h.opts.SlogOpts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch {
	case r.Level >= slog.LevelError:
		level = color.RedString(level)
	case r.Level >= slog.LevelWarn:
		level = color.YellowString(level)
	case r.Level >= slog.LevelInfo:
		level = color.BlueString(level)
	default:
		level = color.MagentaString(level)
	}

	fields := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		addAttr(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		target := fields
		for _, g := range h.groups {
			next, ok := target[g].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[g] = next
			}
			target = next
		}
		addAttr(target, a)
		return true
	})

	attrs, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("[%s] %s %s %s\n",
		r.Time.Format("15:04:05.000"),
		level,
		color.CyanString(r.Message),
		color.New(color.Faint).Sprint(string(attrs)),
	)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = io.WriteString(h.out, line)
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		for i := len(h.groups) - 1; i >= 0; i-- {
			a = slog.Group(h.groups[i], a)
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func addAttr(fields map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		if len(group) == 0 {
			return
		}
		target := fields
		if a.Key != "" {
			next, ok := fields[a.Key].(map[string]any)
			if !ok {
				next = make(map[string]any, len(group))
				fields[a.Key] = next
			}
			target = next
		}
		for _, ga := range group {
			addAttr(target, ga)
		}
		return
	}

	value := a.Value.Any()
	if err, ok := value.(error); ok {
		value = err.Error()
	}
	fields[a.Key] = value
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s)
}

// NewLogger builds a logger for format text, json or pretty.
func NewLogger(out io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(out, &opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(out, &opts)), nil
	case "pretty":
		return slog.New(NewPrettyHandler(out, PrettyHandlerOptions{SlogOpts: opts})), nil
	}
	return nil, fmt.Errorf("invalid log format %q (valid: text, json, pretty)", format)
}
