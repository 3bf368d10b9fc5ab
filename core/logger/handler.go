package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one flat line: JSON or key=value.
// Well known keys come first in keyOrder, the rest sorted.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

// fields is the flattened, normalized content of one record.
type fields map[string]any

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}
	isJSON := h.cfg.format == formatJSON

	f := make(fields, 16)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = r.Level.String()
	if isJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		f.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.addContext(ctx)

	if rid := f.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if _, seen := f["rid_full"]; isJSON && !seen {
				f["rid_full"] = rid
			}
			f["rid"] = compact
		}
	}
	f.setDefault("event", r.Message, "unknown")
	f.setDefault("component", "app")
	f.normalize()

	var line []byte
	if isJSON {
		var err error
		if line, err = f.json(h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = f.kv(h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clone(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// add flattens groups into dotted keys.
func (f fields) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeAttr(key, v); ok {
		f[k] = val
	}
}

func normalizeAttr(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps duration attributes onto millisecond keys: duration -> duration_ms.
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func (f fields) addContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	m := metaFrom(ctx)
	f.fill("rid", m.rid, m.rid != "")
	f.fill("user_id", m.userID, m.userID != 0)
	f.fill("update_id", m.updateID, m.updateID != 0)
	f.fill("chat_id", m.chatID, m.chatID != 0)
	f.fill("handler", m.handler, m.handler != "")
}

// fill sets key unless an explicit attribute already did.
func (f fields) fill(key string, val any, present bool) {
	if _, set := f[key]; present && !set {
		f[key] = val
	}
}

// setDefault assigns the first non-empty candidate when key is empty.
func (f fields) setDefault(key string, candidates ...string) {
	if f.str(key) != "" {
		return
	}
	for _, c := range candidates {
		if c != "" {
			f[key] = c
			return
		}
	}
}

func (f fields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// normalize fixes the level spelling, lowercases status, drops unknown
// outcomes and removes empty values.
func (f fields) normalize() {
	f["level"] = normalizeLevel(f.str("level"))
	if s := f.str("status"); s != "" {
		f["status"], _ = normalizeEnum(s, allowedStatus)
	}
	if o := f.str("outcome"); o != "" {
		if v, ok := normalizeEnum(o, allowedOutcome); ok {
			f["outcome"] = v
		} else {
			delete(f, "outcome")
		}
	}
	for k, v := range f {
		if v == nil || f.str(k) == "" {
			delete(f, k)
		}
	}
}

// keys returns the keys listed in order first, then the rest sorted.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	known := make(map[string]struct{}, len(order))
	for _, k := range order {
		known[k] = struct{}{}
		if _, ok := f[k]; ok {
			out = append(out, k)
		}
	}
	head := len(out)
	for k := range f {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out[head:])
	return out
}

func (f fields) json(order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys(order) {
		data, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f fields) kv(order []string) []byte {
	var buf bytes.Buffer
	for i, k := range f.keys(order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(f[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
