package logging

import (
	"context"
	"log/slog"
	"strings"
)

// teeHandler copies every record it handles into a Ring as "msg key=value ...", then delegates.
type teeHandler struct {
	next   slog.Handler
	ring   *Ring
	prefix string // group path for attrs added later, "a.b."
	attrs  string // preformatted attrs from WithAttrs
}

// NewHandler wraps next so every record it handles also lands in ring.
func NewHandler(next slog.Handler, ring *Ring) slog.Handler {
	return &teeHandler{next: next, ring: ring}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	b.WriteString(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	h.ring.Add(b.String())
	return h.next.Handle(ctx, r)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&b, h.prefix, a)
	}
	return &teeHandler{next: h.next.WithAttrs(attrs), ring: h.ring, prefix: h.prefix, attrs: b.String()}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &teeHandler{next: h.next.WithGroup(name), ring: h.ring, prefix: h.prefix + name + ".", attrs: h.attrs}
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}
