// Package viewhttp serves the preview pages that frame a playable and the QR
// code endpoint used to open them on a phone.
package viewhttp

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/playable-preview/internal/content"
	"github.com/keithlinneman/playable-preview/internal/devices"
	"github.com/keithlinneman/playable-preview/internal/httpmw"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/qr"
)

// mobileUA matches user agents that get the full-screen page.
var mobileUA = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)

// qrCacheControl applies to QR images; the image is a pure function of the url
const qrCacheControl = "public, max-age=86400"

type Options struct {
	Logger    log.Logger
	Store     *content.Store
	Devices   *devices.Catalog
	Templates *template.Template

	// BaseURL is the public origin share links are built on, without a
	// trailing slash. QR codes are only rendered for URLs on this origin.
	BaseURL string
}

type API struct {
	opts   Options
	logger log.Logger
	origin *url.URL
}

func NewAPI(opts Options) (*API, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Devices == nil {
		opts.Devices = devices.Default()
	}

	var errs []error
	if opts.Store == nil {
		errs = append(errs, errors.New("viewhttp: Store is required"))
	}
	if opts.Templates == nil {
		errs = append(errs, errors.New("viewhttp: Templates is required"))
	}
	origin, err := url.Parse(opts.BaseURL)
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		errs = append(errs, errors.New("viewhttp: BaseURL must be an absolute http(s) URL"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &API{opts: opts, logger: opts.Logger, origin: origin}, nil
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.With(httpmw.NoStore, httpmw.Scope("viewer")).Get("/view/{id}", api.HandleView)
	r.With(httpmw.Scope("qr")).Get("/api/qr", api.HandleQR)
}

type deviceOption struct {
	devices.Preset
	Selected bool
}

type viewerPage struct {
	Title    string
	ID       string
	ViewPath string
	FrameSrc string
	ShareURL string
	QRSrc    string
	Preset   devices.Preset
	Devices  []deviceOption
}

type mobilePage struct {
	Title    string
	ID       string
	FrameSrc string
}

// HandleView renders the preview page for one playable: a full-screen frame
// for mobile browsers, a device frame with share controls otherwise.
func (api *API) HandleView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	// chi matches on RawPath only when the request carried escapes
	if r.URL.RawPath != "" {
		if raw, err := url.PathUnescape(id); err == nil {
			id = raw
		}
	}

	rel, ok, err := api.opts.Store.FindEntryHTML(id)
	switch {
	case errors.Is(err, content.ErrInvalidID), errors.Is(err, pathutil.ErrPathEscape):
		http.Error(w, "Invalid playable id", http.StatusBadRequest)
		return
	case err != nil:
		log.FromContext(ctx).Error(ctx, err, "find entry html failed", "id", id)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	case !ok:
		http.Error(w, "Playable not found", http.StatusNotFound)
		return
	}

	title := "Playable Preview - " + id
	frameSrc := FrameSrc(id, rel)

	if mobileUA.MatchString(r.UserAgent()) {
		api.render(ctx, w, "mobile.html", mobilePage{Title: title, ID: id, FrameSrc: frameSrc})
		return
	}

	viewPath := "/view/" + url.PathEscape(id)
	share := api.opts.BaseURL + viewPath
	preset, _ := api.opts.Devices.Lookup(r.URL.Query().Get("device"))

	page := viewerPage{
		Title:    title,
		ID:       id,
		ViewPath: viewPath,
		FrameSrc: frameSrc,
		ShareURL: share,
		QRSrc:    "/api/qr?url=" + url.QueryEscape(share),
		Preset:   preset,
	}
	for _, p := range api.opts.Devices.All() {
		page.Devices = append(page.Devices, deviceOption{Preset: p, Selected: p.Key == preset.Key})
	}
	api.render(ctx, w, "viewer.html", page)
}

// HandleQR renders the url query parameter as an SVG QR code.
func (api *API) HandleQR(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if err := api.checkShareURL(raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	svg, err := qr.SVG(raw, qr.Options{})
	if err != nil {
		ctx := r.Context()
		log.FromContext(ctx).Error(ctx, err, "render qr code failed")
		http.Error(w, "Failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", qrCacheControl)
	_, _ = w.Write(svg)
}

func (api *API) checkShareURL(raw string) error {
	if raw == "" {
		return errors.New("url is required")
	}
	if len(raw) > qr.MaxContentLen {
		return errors.New("url is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) URL")
	}
	if !strings.EqualFold(u.Scheme, api.origin.Scheme) || !strings.EqualFold(u.Host, api.origin.Host) {
		return errors.New("url must point at this service")
	}
	return nil
}

// FrameSrc is the iframe source for the entry file rel of playable id, with
// every path segment escaped.
func FrameSrc(id, rel string) string {
	segs := strings.Split(rel, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return "/playable/" + url.PathEscape(id) + "/" + strings.Join(segs, "/")
}

func (api *API) render(ctx context.Context, w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := api.opts.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(ctx).Error(ctx, err, "render template failed", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
