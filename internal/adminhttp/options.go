package adminhttp

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/keithlinneman/playable-preview/internal/content"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/mirror"
	"github.com/keithlinneman/playable-preview/internal/session"
)

// Metrics receives upload and delete outcomes. *metrics.ServerMetrics
// satisfies it.
type Metrics interface {
	ObserveUpload(kind, result string, bytes int64, seconds float64)
	IncExtractFailure(reason string)
	IncDeletes()
	IncMirrorError()
	SetStored(n int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveUpload(string, string, int64, float64) {}
func (nopMetrics) IncExtractFailure(string)                      {}
func (nopMetrics) IncDeletes()                                   {}
func (nopMetrics) IncMirrorError()                               {}
func (nopMetrics) SetStored(int)                                 {}

type Options struct {
	Logger    log.Logger
	Store     *content.Store
	Sessions  *session.Manager
	Templates *template.Template

	// BaseURL is the public origin used for share links, without a trailing slash
	BaseURL string

	// MaxUploadSize caps the uploaded file; the request body may exceed it
	// by multipart framing only.
	MaxUploadSize int64

	// StagingDir receives uploads before ingestion; os.TempDir when empty
	StagingDir string

	Mirror  mirror.Mirror
	Metrics Metrics

	// Per-route rate limit middleware; nil means unlimited
	LoginLimiter  func(http.Handler) http.Handler
	UploadLimiter func(http.Handler) http.Handler
}

const (
	DefaultMaxUploadSize int64 = 50 << 20

	// multipart boundaries and part headers on top of the file itself
	multipartOverhead int64 = 64 << 10

	maxLoginBody int64 = 4 << 10
)

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaxUploadSize <= 0 {
		o.MaxUploadSize = DefaultMaxUploadSize
	}
	if o.Mirror == nil {
		o.Mirror = mirror.Nop{}
	}
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	if o.LoginLimiter == nil {
		o.LoginLimiter = passthrough
	}
	if o.UploadLimiter == nil {
		o.UploadLimiter = passthrough
	}
}

func (o *Options) validate() error {
	var errs []error
	if o.Store == nil {
		errs = append(errs, errors.New("adminhttp: Store is required"))
	}
	if o.Sessions == nil {
		errs = append(errs, errors.New("adminhttp: Sessions is required"))
	}
	if o.Templates == nil {
		errs = append(errs, errors.New("adminhttp: Templates is required"))
	}
	return errors.Join(errs...)
}

func passthrough(next http.Handler) http.Handler { return next }
