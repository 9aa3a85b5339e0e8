package sitehttp

import (
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/playable-preview/internal/httpmw"
)

// StaticCacheControl applies to the embedded stylesheet and scripts
const StaticCacheControl = "public, max-age=3600"

// Routes mounts playable content, the embedded static assets and the
// fallback 404.
type Routes struct {
	Playables http.Handler
	Static    fs.FS
}

func New(playables http.Handler, static fs.FS) *Routes {
	return &Routes{Playables: playables, Static: static}
}

// RegisterRoutes should be passed LAST so its NotFound becomes the final
// fallback.
func (rt *Routes) RegisterRoutes(r chi.Router) {
	if rt.Playables != nil {
		r.Handle("/playable/{id}/*", httpmw.Chain(rt.Playables, httpmw.Scope("playable")))
		// relative asset URLs in the entry page need the trailing slash
		r.Get("/playable/{id}", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/playable/"+url.PathEscape(chi.URLParam(r, "id"))+"/", http.StatusMovedPermanently)
		})
	}
	if rt.Static != nil {
		r.Handle("/static/*", httpmw.Chain(staticHandler(rt.Static), httpmw.Scope("static")))
	}

	r.NotFound(NotFound)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
}

// NotFound is the response for every unmatched route.
func NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, "Not found", http.StatusNotFound)
}

// staticHandler serves files from fsys without directory listings.
func staticHandler(fsys fs.FS) http.Handler {
	files := http.StripPrefix("/static/", http.FileServerFS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/static/")
		if name == "" || strings.HasSuffix(name, "/") {
			NotFound(w, r)
			return
		}
		if fi, err := fs.Stat(fsys, name); err != nil || fi.IsDir() {
			NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", StaticCacheControl)
		files.ServeHTTP(w, r)
	})
}
