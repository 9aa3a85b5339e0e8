package sitehttp

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"
)

// helpers

// stubHandler records whether it was called and with what id and path.
type stubHandler struct {
	called bool
	id     string
	rest   string
}

func (h *stubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.id = chi.URLParam(r, "id")
	h.rest = chi.URLParam(r, "*")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("stub"))
}

var testStatic = fstest.MapFS{
	"app.css":       {Data: []byte("body{}")},
	"admin.js":      {Data: []byte("// admin")},
	"sub/inner.txt": {Data: []byte("inner")},
}

func newRouter(stub http.Handler) chi.Router {
	r := chi.NewRouter()
	New(stub, testStatic).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// New

func TestNew_ReturnsRoutes(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	rt := New(h, testStatic)

	if rt == nil {
		t.Fatal("New returned nil")
	}
	if rt.Playables == nil || rt.Static == nil {
		t.Fatal("handlers not set")
	}
}

// RegisterRoutes - playables

func TestRegisterRoutes_PlayableDelegates(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(stub)

	rec := do(r, http.MethodGet, "/playable/1700000000000_game/assets/img.png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !stub.called {
		t.Fatal("playable handler not called")
	}
	if stub.id != "1700000000000_game" || stub.rest != "assets/img.png" {
		t.Fatalf("params = %q %q", stub.id, stub.rest)
	}
}

func TestRegisterRoutes_PlayableMethodsReachHandler(t *testing.T) {
	// the playable handler answers 405 itself
	for _, m := range []string{http.MethodPost, http.MethodDelete} {
		stub := &stubHandler{}
		do(newRouter(stub), m, "/playable/x/index.html")
		if !stub.called {
			t.Errorf("%s: playable handler not called", m)
		}
	}
}

func TestRegisterRoutes_PlayableRootRedirects(t *testing.T) {
	stub := &stubHandler{}
	rec := do(newRouter(stub), http.MethodGet, "/playable/1700000000000_game")

	if rec.Code != http.StatusMovedPermanently {
		t.Fatalf("status = %d, want 301", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/playable/1700000000000_game/" {
		t.Fatalf("Location = %q", got)
	}
	if stub.called {
		t.Fatal("playable handler should not be called")
	}
}

// RegisterRoutes - static

func TestRegisterRoutes_Static(t *testing.T) {
	r := newRouter(&stubHandler{})

	rec := do(r, http.MethodGet, "/static/app.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "body{}" {
		t.Fatalf("body = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != StaticCacheControl {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/css; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRegisterRoutes_StaticDenials(t *testing.T) {
	r := newRouter(&stubHandler{})

	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/static/", http.StatusNotFound},
		{http.MethodGet, "/static/sub", http.StatusNotFound},
		{http.MethodGet, "/static/sub/", http.StatusNotFound},
		{http.MethodGet, "/static/missing.js", http.StatusNotFound},
		{http.MethodGet, "/static/%2e%2e/secret", http.StatusNotFound},
		{http.MethodPost, "/static/app.css", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		rec := do(r, tt.method, tt.target)
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.target, rec.Code, tt.want)
		}
	}
}

// RegisterRoutes - fallback

func TestRegisterRoutes_NotFound(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(stub)

	for _, target := range []string{"/", "/nonexistent/path", "/a/b/c/d/e/f"} {
		rec := do(r, http.MethodGet, target)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", target, rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("GET %s Cache-Control = %q", target, got)
		}
	}
	if stub.called {
		t.Fatal("playable handler should not see unmatched routes")
	}
}

func TestRegisterRoutes_ExplicitRouteTakesPrecedence(t *testing.T) {
	r := chi.NewRouter()
	explicitCalled := false
	r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		explicitCalled = true
		w.WriteHeader(http.StatusOK)
	})
	New(&stubHandler{}, testStatic).RegisterRoutes(r)

	rec := do(r, http.MethodGet, "/admin")
	if rec.Code != http.StatusOK || !explicitCalled {
		t.Fatalf("explicit route not used: %d", rec.Code)
	}

	rec = do(r, http.MethodPost, "/admin")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /admin = %d, want 405", rec.Code)
	}
}

func TestRegisterRoutes_NilParts(t *testing.T) {
	r := chi.NewRouter()
	New(nil, nil).RegisterRoutes(r)

	if rec := do(r, http.MethodGet, "/playable/x/index.html"); rec.Code != http.StatusNotFound {
		t.Errorf("playable without handler = %d, want 404", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/static/app.css"); rec.Code != http.StatusNotFound {
		t.Errorf("static without fs = %d, want 404", rec.Code)
	}
}
