package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/playable-preview/internal/health"
	"github.com/keithlinneman/playable-preview/internal/httpmw"
	"github.com/keithlinneman/playable-preview/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	Security     httpmw.SecurityHeadersOptions
	Health       health.Probe
	Readiness    health.Probe

	// APIRoutes registers the application routes.
	APIRoutes func(chi.Router)

	// SiteRoutes is registered after APIRoutes and owns the NotFound and
	// MethodNotAllowed fallbacks.
	SiteRoutes func(chi.Router)

	// MaxBodyBytes caps every request body; routes may lower it but not
	// raise it. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// ReadTimeout bounds reading a whole request, body included. Uploads
	// need more than DefaultReadTimeout on slow links.
	ReadTimeout time.Duration
}

const DefaultMaxBodyBytes int64 = 1 << 20
