package httpserver

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/playable-preview/internal/health"
	"github.com/keithlinneman/playable-preview/internal/httpmw"
	"github.com/keithlinneman/playable-preview/internal/log"
)

var compressibleTypes = []string{
	"text/html", "text/css", "text/javascript", "application/javascript",
	"application/json", "image/svg+xml", "image/x-icon",
}

// NewHandler assembles the public router and its middleware stack. The
// caller owns the *http.Server.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(
		compress,
		httpmw.AnnotateHTTPRoute,
		httpmw.AccessLog(),
		// login and upload routes lower this further
		httpmw.MaxBody(opts.MaxBodyBytes),
	)
	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}
	for _, register := range []func(chi.Router){opts.APIRoutes, opts.SiteRoutes} {
		if register != nil {
			register(r)
		}
	}

	// innermost first; nil entries are skipped
	layers := []func(http.Handler) http.Handler{
		httpmw.WithLogger(opts.Logger),
		opts.MetricsMW,
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		tracing,
		opts.RateLimitMW,
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		httpmw.RequestID("X-Request-Id"),
		nil, // recover, below
		httpmw.SecurityHeaders(opts.Security),
	}
	if opts.UseRecoverMW {
		layers[7] = httpmw.Recover(opts.Logger, opts.OnPanic)
	}

	var h http.Handler = r
	for _, wrap := range layers {
		if wrap != nil {
			h = wrap(h)
		}
	}
	return h
}

// compress gzips compressible responses. Range requests skip it so a 206
// body stays in the identity encoding its Content-Range describes.
func compress(next http.Handler) http.Handler {
	gz := middleware.Compress(5, compressibleTypes...)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

func tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool { return traced(r.URL.Path) }),
		// renamed to the route pattern by AnnotateHTTPRoute
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

var (
	untracedPaths = map[string]bool{
		"/favicon.ico": true, "/favicon.svg": true, "/robots.txt": true,
		"/-/healthy": true, "/-/ready": true, "/api/qr": true,
	}
	untracedExts = map[string]bool{
		".css": true, ".js": true, ".mjs": true, ".json": true, ".map": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true, ".ico": true,
		".mp3": true, ".ogg": true, ".wav": true, ".mp4": true, ".webm": true,
		".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	}
)

// traced keeps spans for pages, uploads and admin calls. Probes, embedded
// assets and the files inside a playable are skipped.
func traced(p string) bool {
	if untracedPaths[p] || strings.HasPrefix(p, "/static/") {
		return false
	}
	return !untracedExts[strings.ToLower(path.Ext(p))]
}
