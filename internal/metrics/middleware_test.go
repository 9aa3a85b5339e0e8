package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
)

func TestStatusWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}
	sw.Write([]byte("<html>"))
	sw.Write([]byte("</html>"))
	if sw.status != http.StatusOK || sw.n != 13 {
		t.Fatalf("implicit write: status %d bytes %d", sw.status, sw.n)
	}

	rec = httptest.NewRecorder()
	sw = &statusWriter{ResponseWriter: rec}
	sw.WriteHeader(http.StatusCreated)
	sw.Write([]byte("{}"))
	if sw.status != http.StatusCreated || rec.Code != http.StatusCreated || sw.n != 2 {
		t.Fatalf("explicit header: status %d rec %d bytes %d", sw.status, rec.Code, sw.n)
	}
}

func TestMiddleware_Labels(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus string
		wantErrors float64
	}{
		{"no write", 0, "", "200", 0},
		{"ok", http.StatusOK, "ok", "200", 0},
		{"not found", http.StatusNotFound, "", "404", 0},
		{"too large", http.StatusRequestEntityTooLarge, "", "413", 0},
		{"server error", http.StatusInternalServerError, "", "500", 1},
		{"unavailable", http.StatusServiceUnavailable, "", "503", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/upload", http.NoBody))

			l := labelsOf(family(t, m.reg, "http_requests_total").GetMetric()[0])
			if l["method"] != http.MethodPost || l["route"] != "unmatched" || l["status"] != tt.wantStatus {
				t.Fatalf("labels = %v", l)
			}
			var errs float64
			if f := family(t, m.reg, "http_errors_total"); f != nil {
				errs = f.GetMetric()[0].GetCounter().GetValue()
			}
			if errs != tt.wantErrors {
				t.Fatalf("errors = %v, want %v", errs, tt.wantErrors)
			}
		})
	}
}

func TestMiddleware_ChiRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/playables/{id}/*", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<!doctype html>"))
	})

	for _, p := range []string{"/playables/1700000000000_a/index.html", "/playables/1700000000001_b/app.js"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, http.NoBody))
	}

	f := family(t, m.reg, "http_requests_total")
	if len(f.GetMetric()) != 1 {
		t.Fatalf("series = %d, want one per route pattern", len(f.GetMetric()))
	}
	s := f.GetMetric()[0]
	if got := labelsOf(s)["route"]; got != "/playables/{id}/*" {
		t.Fatalf("route = %q", got)
	}
	if s.GetCounter().GetValue() != 2 {
		t.Fatalf("count = %v", s.GetCounter().GetValue())
	}
	if n := samples(t, m.reg, "http_request_duration_seconds"); n != 2 {
		t.Fatalf("duration samples = %d", n)
	}
}

func TestMiddleware_ResponseSizeAndInflight(t *testing.T) {
	m := New()
	var inflight float64
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inflight = value(t, m.reg, "http_inflight_requests")
		w.Write([]byte("hello world"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Body.String() != "hello world" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if inflight != 1 {
		t.Fatalf("inflight during request = %v", inflight)
	}
	if v := value(t, m.reg, "http_inflight_requests"); v != 0 {
		t.Fatalf("inflight after request = %v", v)
	}
	sizes := family(t, m.reg, "http_response_size_bytes").GetMetric()[0].GetHistogram()
	if sizes.GetSampleSum() != 11 {
		t.Fatalf("response size sum = %v", sizes.GetSampleSum())
	}
}

func TestMiddleware_InjectsRouteContext(t *testing.T) {
	m := New()
	var ok bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok = chi.RouteContext(r.Context()) != nil
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !ok {
		t.Fatal("no chi route context inside the handler")
	}
}

func TestTraceExemplar(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctxWith := func(flags trace.TraceFlags) context.Context {
		return trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID, SpanID: spanID, TraceFlags: flags,
		}))
	}

	ex := traceExemplar(ctxWith(trace.FlagsSampled))
	if ex["trace_id"] != "0102030405060708090a0b0c0d0e0f10" {
		t.Fatalf("sampled exemplar = %v", ex)
	}
	if ex := traceExemplar(ctxWith(0)); ex != nil {
		t.Fatalf("unsampled exemplar = %v", ex)
	}
	if ex := traceExemplar(context.Background()); ex != nil {
		t.Fatalf("no span exemplar = %v", ex)
	}
	invalid := trace.ContextWithSpanContext(context.Background(), trace.SpanContext{})
	if ex := traceExemplar(invalid); ex != nil {
		t.Fatalf("invalid span exemplar = %v", ex)
	}
}
