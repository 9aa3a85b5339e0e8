package sitehandler

import (
	"net/http"
	"net/url"
	"os"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	opts Options
}

func New(opts Options) (*Handler, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Handler{opts: opts}, nil
}

// ServeHTTP serves /playable/{id}/* routes. An empty file path means
// index.html.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// hardening: only allow GET/HEAD
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, rel := chi.URLParam(r, "id"), chi.URLParam(r, "*")
	// chi matches on RawPath when the request carried escapes
	if r.URL.RawPath != "" {
		var err error
		if id, err = url.PathUnescape(id); err != nil {
			h.deny(w, r, id, ErrInvalidID)
			return
		}
		if rel, err = url.PathUnescape(rel); err != nil {
			h.deny(w, r, id, ErrInvalidPath)
			return
		}
	}
	if rel == "" {
		rel = "index.html"
	}

	file, err := h.Resolve(id, rel)
	if err != nil {
		h.deny(w, r, id, err)
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		// deleted between resolve and open
		h.deny(w, r, id, ErrNotFound)
		return
	}
	defer f.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", file.ContentType)
	hdr.Set("X-Content-Type-Options", "nosniff")
	hdr.Set("Content-Security-Policy", h.opts.ContentSecurityPolicy)
	hdr.Set("X-Frame-Options", "SAMEORIGIN")
	hdr.Set("Cross-Origin-Embedder-Policy", "unsafe-none")
	if cc := cacheControlForFile(file.Path, &h.opts); cc != "" {
		hdr.Set("Cache-Control", cc)
	}

	// ServeContent keeps the Content-Type set above and handles Range and
	// conditional requests
	http.ServeContent(w, r, "", file.ModTime, f)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request, id string, err error) {
	why := reason(err)
	if h.opts.OnDenied != nil {
		h.opts.OnDenied(why)
	}

	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.opts.Logger.Error(r.Context(), err, "playable serve failed", "id", id)
	} else {
		h.opts.Logger.Debug(r.Context(), "playable serve denied", "id", id, "reason", why, "status", status)
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.Error(w, http.StatusText(status), status)
}
