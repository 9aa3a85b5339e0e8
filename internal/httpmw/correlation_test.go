package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("bare context = %q", got)
	}
	ctx := WithRequestID(context.Background(), "")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("empty id stored as %q", got)
	}
	if got := RequestIDFromContext(WithRequestID(ctx, "req-7")); got != "req-7" {
		t.Fatalf("got %q", got)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		inbound string
		keep    bool
	}{
		{"generated", "", "", false},
		{"propagated", "X-Request-Id", "upstream-abc", true},
		{"custom header", "X-Correlation-Id", "corr-999", true},
		{"space", "", "has space", false},
		{"newline", "", "line\nbreak", false},
		{"slash", "", "a/b", false},
		{"dotdot", "", "..", false},
		{"too long", "", strings.Repeat("x", 200), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == "" {
				header = "X-Request-Id"
			}
			var seen string
			h := RequestID(tt.header)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/admin/upload", http.NoBody)
			if tt.inbound != "" {
				req.Header.Set(header, tt.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if tt.keep && seen != tt.inbound {
				t.Fatalf("id = %q, want %q", seen, tt.inbound)
			}
			if !tt.keep {
				if _, err := uuid.Parse(seen); err != nil {
					t.Fatalf("id %q is not a UUID", seen)
				}
			}
			if rec.Header().Get(header) != seen {
				t.Fatalf("echoed %q, context %q", rec.Header().Get(header), seen)
			}
		})
	}
}

func TestRequestID_Unique(t *testing.T) {
	h := RequestID("")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		id := rec.Header().Get("X-Request-Id")
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestTraceResponseHeaders(t *testing.T) {
	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	noop := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/playables/p1/index.html", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	rec := httptest.NewRecorder()
	TraceResponseHeaders("", "")(noop).ServeHTTP(rec, req)
	if rec.Header().Get("X-Trace-Id") != tid.String() || rec.Header().Get("X-Span-Id") != sid.String() {
		t.Fatalf("headers = %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	TraceResponseHeaders("Trace", "Span")(noop).ServeHTTP(rec, req)
	if rec.Header().Get("Trace") != tid.String() || rec.Header().Get("Span") != sid.String() {
		t.Fatalf("custom headers = %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	TraceResponseHeaders("", "")(noop).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Trace-Id") != "" {
		t.Fatal("trace header without span context")
	}
}

func TestAnnotateHTTPRoute(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := chi.NewRouter()
	r.Use(AnnotateHTTPRoute)
	r.Get("/playables/{id}/*", func(http.ResponseWriter, *http.Request) {})

	traced := func(path string) {
		ctx, span := tp.Tracer("test").Start(context.Background(), "GET")
		req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
		r.ServeHTTP(httptest.NewRecorder(), req)
		span.End()
	}
	traced("/playables/p1/assets/app.js")
	traced("/nope")

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("spans = %d", len(ended))
	}
	if got := ended[0].Name(); got != "GET /playables/{id}/*" {
		t.Fatalf("matched span name = %q", got)
	}
	if got := ended[1].Name(); got != "GET /nope" {
		t.Fatalf("unmatched span name = %q", got)
	}

	// no recording span
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/playables/p1/x", nil))
}
