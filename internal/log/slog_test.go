package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer, opts Options) *slogLogger {
	t.Helper()
	opts.Writer = buf
	if opts.App == "" {
		opts.App = "playable-preview"
	}
	l, err := newSlog(opts)
	if err != nil {
		t.Fatalf("newSlog: %v", err)
	}
	return l.(*slogLogger)
}

// lastRecord parses the last JSON line written to buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("parse log line: %v\nraw: %s", err, last)
	}
	return m
}

func TestNewSlog(t *testing.T) {
	if l, err := newSlog(Options{App: "playable-preview"}); err != nil || l == nil {
		t.Fatalf("newSlog with nil writer: %v", err)
	}

	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{})
	if l.maxErrorLinks != 8 {
		t.Errorf("default maxErrorLinks = %d, want 8", l.maxErrorLinks)
	}
	l = newTestLogger(t, &buf, Options{MaxErrorLinks: 20})
	if l.maxErrorLinks != 20 {
		t.Errorf("maxErrorLinks = %d, want 20", l.maxErrorLinks)
	}
}

func TestNewSlog_Formats(t *testing.T) {
	var buf bytes.Buffer
	newTestLogger(t, &buf, Options{JsonFormat: true}).Info(context.Background(), "upload accepted")
	if !strings.Contains(buf.String(), `"msg":"upload accepted"`) {
		t.Fatalf("json output = %s", buf.String())
	}

	buf.Reset()
	newTestLogger(t, &buf, Options{}).Info(context.Background(), "upload accepted")
	if !strings.Contains(buf.String(), `msg="upload accepted"`) {
		t.Fatalf("text output = %s", buf.String())
	}
}

func TestNewSlog_BuildAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{Version: "1.4.0", Commit: "abc123", JsonFormat: true})
	l.Info(context.Background(), "started")

	m := lastRecord(t, &buf)
	if m["app"] != "playable-preview" || m["version"] != "1.4.0" || m["commit"] != "abc123" {
		t.Fatalf("build attrs = %v", m)
	}

	buf.Reset()
	newTestLogger(t, &buf, Options{JsonFormat: true}).Info(context.Background(), "started")
	m = lastRecord(t, &buf)
	if _, ok := m["version"]; ok {
		t.Fatal("empty version should be omitted")
	}
	if _, ok := m["commit"]; ok {
		t.Fatal("empty commit should be omitted")
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, Level: slog.LevelWarn})
	ctx := context.Background()

	l.Debug(ctx, "debug msg")
	l.Info(ctx, "info msg")
	if buf.Len() != 0 {
		t.Fatalf("debug/info should be filtered at warn: %s", buf.String())
	}
	l.Warn(ctx, "warn msg")
	l.Error(ctx, errors.New("boom"), "error msg")
	out := buf.String()
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Fatalf("warn/error missing: %s", out)
	}
}

func TestSlogLogger_KV(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true})

	l.Info(context.Background(), "stored", "id", "1700000000000_game", "files", 3)
	m := lastRecord(t, &buf)
	if m["id"] != "1700000000000_game" || m["files"] != float64(3) {
		t.Fatalf("kv = %v", m)
	}

	l.Warn(context.Background(), "odd", "id", "x", "orphan")
	m = lastRecord(t, &buf)
	if m["id"] != "x" {
		t.Fatalf("id = %v", m["id"])
	}
	if _, ok := m["orphan"]; ok {
		t.Fatal("orphan key should be dropped")
	}
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, Options{JsonFormat: true, IncludeErrorLinks: true, MaxErrorLinks: 3})

	admin := base.With("component", "admin")
	upload := admin.With("handler", "upload", 42, "ignored", "dangling")

	upload.Info(context.Background(), "child")
	m := lastRecord(t, &buf)
	if m["component"] != "admin" || m["handler"] != "upload" {
		t.Fatalf("chained attrs = %v", m)
	}
	if _, ok := m["dangling"]; ok {
		t.Fatal("odd trailing key should be dropped")
	}

	base.Info(context.Background(), "parent")
	m = lastRecord(t, &buf)
	if _, ok := m["component"]; ok {
		t.Fatal("With mutated the parent logger")
	}

	child := upload.(*slogLogger)
	if !child.includeErrorLinks || child.maxErrorLinks != 3 {
		t.Fatal("With dropped error link config")
	}
}

func TestSlogLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, Level: slog.LevelError})

	wrapped := fmt.Errorf("ingest: %w", fmt.Errorf("root cause"))
	l.Error(context.Background(), wrapped, "upload failed", "id", "1700000000000_game")

	m := lastRecord(t, &buf)
	for _, k := range []string{"err", "error_type", "cause_type", "stack"} {
		if m[k] == nil {
			t.Errorf("%s missing", k)
		}
	}
	if m["id"] != "1700000000000_game" {
		t.Errorf("id = %v", m["id"])
	}
	chain, ok := m["error_chain"].([]any)
	if !ok || len(chain) < 2 {
		t.Fatalf("error_chain = %v", m["error_chain"])
	}
	if _, ok := m["error_links"]; ok {
		t.Fatal("error_links present while disabled")
	}

	buf.Reset()
	l.Error(context.Background(), nil, "nil error msg")
	m = lastRecord(t, &buf)
	if _, ok := m["err"]; ok {
		t.Fatal("err present for nil error")
	}
}

func TestSlogLogger_ErrorLinks(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, Level: slog.LevelError, IncludeErrorLinks: true, MaxErrorLinks: 8})
	l.Error(context.Background(), errors.New("test"), "msg")

	if _, ok := lastRecord(t, &buf)["error_links"]; !ok {
		t.Fatal("error_links missing while enabled")
	}
}

func TestSlogLogger_Sync(t *testing.T) {
	var buf bytes.Buffer
	if err := newTestLogger(t, &buf, Options{}).Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestAddKV(t *testing.T) {
	count := func(kv []any) int {
		r := slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)
		addKV(&r, kv)
		n := 0
		r.Attrs(func(slog.Attr) bool { n++; return true })
		return n
	}
	tests := []struct {
		name string
		kv   []any
		want int
	}{
		{"pairs", []any{"k1", "v1", "k2", 99}, 2},
		{"odd", []any{"k1", "v1", "orphan"}, 1},
		{"non string key", []any{42, "val", "real", "val2"}, 1},
		{"empty", []any{}, 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		if got := count(tt.kv); got != tt.want {
			t.Errorf("%s: attrs = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestOtelHandler(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	l.Info(ctx, "traced")
	m := lastRecord(t, &buf)
	if m["trace_id"] != "0102030405060708090a0b0c0d0e0f10" || m["span_id"] != "0102030405060708" {
		t.Fatalf("trace fields = %v / %v", m["trace_id"], m["span_id"])
	}

	l.Info(context.Background(), "untraced")
	if _, ok := lastRecord(t, &buf)["trace_id"]; ok {
		t.Fatal("trace_id without a span context")
	}
}

func TestStackHandler_NoStackBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{JsonFormat: true, StacktraceLevel: slog.LevelError})
	l.Warn(context.Background(), "slow extract")

	if _, ok := lastRecord(t, &buf)["stack"]; ok {
		t.Fatal("stack below stacktrace level")
	}
}

type customError struct{ msg string }

func (e *customError) Error() string { return e.msg }

func TestErrorChain(t *testing.T) {
	if got := errorChain(nil); len(got) != 0 {
		t.Fatalf("nil chain = %v", got)
	}
	if got := errorChain(errors.New("single")); len(got) != 1 || got[0] != "single" {
		t.Fatalf("single chain = %v", got)
	}

	chain := errorChain(fmt.Errorf("wrap: %w", errors.New("root")))
	if len(chain) < 2 || chain[0] != "wrap: root" || chain[len(chain)-1] != "root" {
		t.Fatalf("wrapped chain = %v", chain)
	}
	for i := 1; i < len(chain); i++ {
		if chain[i] == chain[i-1] {
			t.Fatalf("duplicate consecutive message %q", chain[i])
		}
	}

	if got := errorChain(errors.Join(errors.New("first"), errors.New("second"))); len(got) == 0 {
		t.Fatal("joined chain empty")
	}
}

func TestClassifyTypes(t *testing.T) {
	if s, r := classifyTypes(nil); s != "" || r != "" {
		t.Fatalf("nil = (%q, %q)", s, r)
	}
	if s, r := classifyTypes(errors.New("simple")); s == "" || r == "" {
		t.Fatalf("simple = (%q, %q)", s, r)
	}
	s, r := classifyTypes(fmt.Errorf("outer: %w", &customError{msg: "inner"}))
	if !strings.Contains(s, "customError") || !strings.Contains(r, "customError") {
		t.Fatalf("wrapped = (%q, %q), want customError", s, r)
	}
}

func TestChainLinks(t *testing.T) {
	if got := chainLinks(nil, 8); len(got) != 0 {
		t.Fatalf("nil links = %v", got)
	}
	if got := chainLinks(errors.New("single"), 8); len(got) == 0 || got[0]["msg"] != "single" {
		t.Fatalf("single links = %v", got)
	}

	err := errors.New("base")
	for i := 0; i < 20; i++ {
		err = fmt.Errorf("wrap %d: %w", i, err)
	}
	if got := chainLinks(err, 5); len(got) > 5 {
		t.Fatalf("links = %d, max 5", len(got))
	}
	if got := chainLinks(err, 0); len(got) == 0 {
		t.Fatal("max 0 means unlimited")
	}
}

func TestFrames(t *testing.T) {
	if _, _, _, ok := frameFromPC(0); ok {
		t.Fatal("frameFromPC(0) ok")
	}
	if _, _, _, ok := firstExtFrame(nil); ok {
		t.Fatal("firstExtFrame(nil) ok")
	}
}

func TestInternalFrame(t *testing.T) {
	tests := []struct {
		fn          string
		skipXerrors bool
		want        bool
	}{
		{"log/slog.(*Logger).Info", false, true},
		{"github.com/keithlinneman/playable-preview/internal/log.(*slogLogger).Info", false, true},
		{"github.com/keithlinneman/playable-preview/internal/xerrors.Wrap", false, false},
		{"github.com/keithlinneman/playable-preview/internal/xerrors.Wrap", true, true},
		{"github.com/keithlinneman/playable-preview/internal/content.(*Store).Ingest", true, false},
	}
	for _, tt := range tests {
		if got := internalFrame(tt.fn, tt.skipXerrors); got != tt.want {
			t.Errorf("internalFrame(%q, %v) = %v, want %v", tt.fn, tt.skipXerrors, got, tt.want)
		}
	}
}

func TestRenderPCs_SkipsLogFrames(t *testing.T) {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(1, pcs)
	out := renderPCs(pcs[:n])
	if strings.Contains(out, "TestRenderPCs_SkipsLogFrames") {
		t.Fatalf("log package frame rendered:\n%s", out)
	}
	if !strings.Contains(out, "testing.tRunner") {
		t.Fatalf("rendered stack missing first external frame:\n%s", out)
	}
}
