package logger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ANSI escape sequences.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorGray    = "\033[37m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

var levelStyles = map[slog.Level]struct{ label, color string }{
	slog.LevelDebug: {"DBG", colorMagenta},
	slog.LevelInfo:  {"INF", colorGreen},
	slog.LevelWarn:  {"WRN", colorYellow},
	slog.LevelError: {"ERR", colorRed},
}

// PrettyHandler writes one coloured line per record:
//
//	09:05:07 INF file.go:42 message key=value group.key=value
//
// Handlers derived through WithAttrs and WithGroup share the writer lock, so
// lines from concurrent goroutines never interleave.
type PrettyHandler struct {
	opts   slog.HandlerOptions
	w      io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
}

// NewPrettyHandler creates a PrettyHandler. nil opts log at Info.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled implements slog.Handler.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

// Handle implements slog.Handler.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	buf = appendStyled(buf, colorDim, r.Time.Format(time.TimeOnly))
	buf = append(buf, ' ')

	label, color := formatLevel(r.Level)
	buf = appendStyled(buf, color, label)
	buf = append(buf, ' ')

	if h.opts.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		buf = appendStyled(buf, colorDim, filepath.Base(frame.File)+":"+strconv.Itoa(frame.Line))
		buf = append(buf, ' ')
	}

	buf = appendStyled(buf, colorBold, r.Message)

	own := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		own = append(own, a)
		return true
	})
	attrs := append(slices.Clip(h.attrs), h.qualify(own)...)
	if len(attrs) > 0 {
		buf = append(buf, ' ')
		buf = append(buf, colorCyan...)
		buf = appendAttrs(buf, attrs)
		buf = append(buf, colorReset...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs implements slog.Handler. Attributes are qualified by the groups
// open at the time of the call.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(slices.Clip(h.attrs), h.qualify(attrs)...)
	return &next
}

// WithGroup implements slog.Handler.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = append(slices.Clip(h.groups), name)
	return &next
}

// qualify nests attrs under the open groups.
func (h *PrettyHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(h.groups) == 0 || len(attrs) == 0 {
		return attrs
	}
	return []slog.Attr{{Key: strings.Join(h.groups, "."), Value: slog.GroupValue(attrs...)}}
}

func appendStyled(buf []byte, style, s string) []byte {
	buf = append(buf, style...)
	buf = append(buf, s...)
	return append(buf, colorReset...)
}

// appendAttrs writes attrs as space-separated key=value pairs, flattening
// groups into dotted keys.
func appendAttrs(buf []byte, attrs []slog.Attr) []byte {
	sep := false
	var walk func(prefix string, attrs []slog.Attr)
	walk = func(prefix string, attrs []slog.Attr) {
		for _, a := range attrs {
			if a.Equal(slog.Attr{}) {
				continue
			}
			key := a.Key
			if prefix != "" {
				key = prefix + "." + key
			}
			if a.Value.Kind() == slog.KindGroup {
				walk(key, a.Value.Group())
				continue
			}
			if sep {
				buf = append(buf, ' ')
			}
			sep = true
			buf = append(buf, key...)
			buf = append(buf, '=')
			buf = append(buf, formatValue(a.Value)...)
		}
	}
	walk("", attrs)
	return buf
}

// formatLevel returns the three-letter label and colour for level. Levels
// between the standard ones fall back to slog's own naming.
func formatLevel(level slog.Level) (label, color string) {
	if s, ok := levelStyles[level]; ok {
		return s.label, s.color
	}
	return level.String(), colorGray
}

// formatValue renders v for the pretty output. Strings that would break
// key=value parsing are quoted, as are errors.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		if s := v.String(); strings.ContainsAny(s, " =\"") {
			return strconv.Quote(s)
		}
		return v.String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
	}
	return v.String()
}
