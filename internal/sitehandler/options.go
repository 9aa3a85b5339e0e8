package sitehandler

import (
	"errors"
	"fmt"
	"os"

	"github.com/keithlinneman/playable-preview/internal/log"
)

var ErrInvalidOptions = errors.New("invalid sitehandler options")

// DefaultContentSecurityPolicy applies to every served playable file. Inline
// and eval'd script are common in ad creatives; framing is limited to this
// origin so only the viewer can embed them.
const DefaultContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' 'unsafe-eval' blob:; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"img-src 'self' data: blob: https:; " +
	"media-src 'self' data: blob:; " +
	"font-src 'self' data: https://fonts.gstatic.com; " +
	"connect-src 'self'; " +
	"object-src 'none'; base-uri 'self'; form-action 'none'; frame-ancestors 'self'"

type Options struct {
	Logger log.Logger

	// Root is the content store root; one sub-directory per playable
	Root string

	// Cache policies applied by file extension.
	HTMLCacheControl  string // default: "no-cache"
	AssetCacheControl string // default: "public, max-age=86400"
	OtherCacheControl string // default: "no-cache"

	// ContentSecurityPolicy replaces the site-wide policy on playable responses.
	ContentSecurityPolicy string // default: DefaultContentSecurityPolicy

	// OnDenied, if set, is called with a short reason for every request that
	// does not resolve to a servable file.
	OnDenied func(reason string)
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.HTMLCacheControl == "" {
		o.HTMLCacheControl = "no-cache"
	}
	if o.AssetCacheControl == "" {
		o.AssetCacheControl = "public, max-age=86400"
	}
	if o.OtherCacheControl == "" {
		o.OtherCacheControl = "no-cache"
	}
	if o.ContentSecurityPolicy == "" {
		o.ContentSecurityPolicy = DefaultContentSecurityPolicy
	}
}

func (o *Options) validate() error {
	if o.Root == "" {
		return fmt.Errorf("%w: Root is empty", ErrInvalidOptions)
	}
	fi, err := os.Stat(o.Root)
	if err != nil {
		return fmt.Errorf("%w: Root %q: %v", ErrInvalidOptions, o.Root, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: Root %q is not a directory", ErrInvalidOptions, o.Root)
	}
	return nil
}
