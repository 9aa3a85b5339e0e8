package httpmw

import "net/http"

// DefaultContentSecurityPolicy covers the admin and viewer pages. Playable
// files replace it with their own, looser policy.
const DefaultContentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; " +
	"img-src 'self' data:; font-src 'self'; frame-src 'self'; base-uri 'self'; form-action 'self'; " +
	"frame-ancestors 'none'; object-src 'none'"

type SecurityHeadersOptions struct {
	// ContentSecurityPolicy defaults to DefaultContentSecurityPolicy
	ContentSecurityPolicy string

	// HSTS enables Strict-Transport-Security; only turn on behind TLS
	HSTS bool

	// CrossOriginEmbedderPolicy is omitted when empty. require-corp stops
	// the viewer from framing playables that load third-party assets.
	CrossOriginEmbedderPolicy string
}

// SecurityHeaders is middleware that adds common security headers to HTTP
// responses. Handlers may override any of them.
func SecurityHeaders(opts SecurityHeadersOptions) func(http.Handler) http.Handler {
	csp := opts.ContentSecurityPolicy
	if csp == "" {
		csp = DefaultContentSecurityPolicy
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if opts.HSTS {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			h.Set("Content-Security-Policy", csp)

			// Disable MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Old clickjacking protection
			h.Set("X-Frame-Options", "DENY")

			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")

			if opts.CrossOriginEmbedderPolicy != "" {
				h.Set("Cross-Origin-Embedder-Policy", opts.CrossOriginEmbedderPolicy)
			}
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Cross-Origin-Resource-Policy", "same-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks every response as uncacheable. Used on authenticated pages.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
