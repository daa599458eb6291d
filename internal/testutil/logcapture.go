package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// LogRecord is a single captured log line. Group names are flattened into
// dotted attribute keys.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Attr returns the attribute value as a string, or "" when it is absent.
func (r LogRecord) Attr(key string) string {
	v, ok := r.Attrs[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return slog.AnyValue(v).String()
}

type logStore struct {
	mu      sync.Mutex
	records []LogRecord
}

// LogCapture is a slog.Handler that records every entry in memory so tests can
// assert on structured events. All handlers derived through WithAttrs and
// WithGroup share one store.
type LogCapture struct {
	store  *logStore
	attrs  []slog.Attr
	prefix string
}

// NewLogCapture returns a capturing handler and a logger writing to it.
func NewLogCapture() (*LogCapture, *slog.Logger) {
	lc := &LogCapture{store: &logStore{}}
	return lc, slog.New(lc)
}

func (lc *LogCapture) Enabled(context.Context, slog.Level) bool { return true }

func (lc *LogCapture) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any, len(lc.attrs)+r.NumAttrs()),
	}
	for _, a := range lc.attrs {
		addAttr(rec.Attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(rec.Attrs, lc.prefix, a)
		return true
	})

	lc.store.mu.Lock()
	lc.store.records = append(lc.store.records, rec)
	lc.store.mu.Unlock()
	return nil
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = v.Any()
}

func (lc *LogCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *lc
	out.attrs = append(append([]slog.Attr(nil), lc.attrs...), prefixed(lc.prefix, attrs)...)
	return &out
}

func prefixed(prefix string, attrs []slog.Attr) []slog.Attr {
	if prefix == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return out
}

func (lc *LogCapture) WithGroup(name string) slog.Handler {
	if name == "" {
		return lc
	}
	out := *lc
	out.prefix = lc.prefix + name + "."
	return &out
}

// Records returns a copy of everything captured so far, oldest first.
func (lc *LogCapture) Records() []LogRecord {
	lc.store.mu.Lock()
	defer lc.store.mu.Unlock()
	return append([]LogRecord(nil), lc.store.records...)
}

// Find returns the most recent record whose message equals event.
func (lc *LogCapture) Find(event string) (LogRecord, bool) {
	recs := lc.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Message == event {
			return recs[i], true
		}
	}
	return LogRecord{}, false
}

// Count returns how many records carry the given message.
func (lc *LogCapture) Count(event string) int {
	n := 0
	for _, r := range lc.Records() {
		if r.Message == event {
			n++
		}
	}
	return n
}

// RequireEvent fails the test immediately if event was never logged.
func (lc *LogCapture) RequireEvent(t interface {
	Helper()
	Fatalf(string, ...any)
}, event string) LogRecord {
	t.Helper()
	rec, ok := lc.Find(event)
	if !ok {
		t.Fatalf("log event %q not captured", event)
	}
	return rec
}
