package adminhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/docker/go-units"
	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/playable-preview/internal/content"
	"github.com/keithlinneman/playable-preview/internal/httpmw"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/session"
)

// API implements the login flow and the authenticated admin endpoints.
type API struct {
	opts   Options
	logger log.Logger
}

// NewAPI creates the admin API.
func NewAPI(opts Options) (*API, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &API{opts: opts, logger: opts.Logger}, nil
}

// RegisterRoutes attaches the login and admin endpoints to the router
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	r.Group(func(r chi.Router) {
		r.Use(httpmw.NoStore, httpmw.Scope("login"))
		r.Get("/login", api.HandleLoginPage)
		r.With(api.opts.LoginLimiter, httpmw.MaxBody(maxLoginBody)).Post("/login", api.HandleLogin)
		r.Get("/logout", api.HandleLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(httpmw.NoStore, api.opts.Sessions.RequireAuth, httpmw.Scope("admin"))
		r.Get("/admin", api.HandleList)
		r.With(api.opts.UploadLimiter, httpmw.MaxBody(api.opts.MaxUploadSize+multipartOverhead)).
			Post("/admin/upload", api.HandleUpload)
		r.Delete("/admin/delete/{id}", api.HandleDelete)
	})
}

type loginPage struct {
	Error string
}

// playableView is one card on the admin page
type playableView struct {
	ID        string
	Ready     bool
	ViewPath  string
	ViewURL   string
	CreatedAt string
}

type adminPage struct {
	Playables     []playableView
	UploadError   string
	MaxUploadSize string
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HandleLoginPage renders the login form, or skips it for a signed-in admin.
func (api *API) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if api.opts.Sessions.Authenticated(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	api.render(r.Context(), w, http.StatusOK, "login.html", loginPage{})
}

// HandleLogin checks the submitted password and starts a session.
func (api *API) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		api.render(ctx, w, http.StatusBadRequest, "login.html", loginPage{Error: "Invalid request"})
		return
	}

	err := api.opts.Sessions.Login(w, r, r.PostFormValue("password"))
	if errors.Is(err, session.ErrInvalidPassword) {
		api.render(ctx, w, http.StatusUnauthorized, "login.html", loginPage{Error: "Invalid password"})
		return
	}
	if err != nil {
		log.FromContext(ctx).Error(ctx, err, "admin login failed")
		api.render(ctx, w, http.StatusInternalServerError, "login.html", loginPage{Error: "Login failed"})
		return
	}

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (api *API) HandleLogout(w http.ResponseWriter, r *http.Request) {
	api.opts.Sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// HandleList renders every playable, newest first, with the upload form.
func (api *API) HandleList(w http.ResponseWriter, r *http.Request) {
	api.renderAdmin(w, r, http.StatusOK, "")
}

// HandleDelete removes one playable and answers in JSON.
func (api *API) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	// chi matches on RawPath only when the request carried escapes
	if r.URL.RawPath != "" {
		if raw, err := url.PathUnescape(id); err == nil {
			id = raw
		}
	}

	err := api.opts.Store.Delete(id)
	switch {
	case errors.Is(err, content.ErrInvalidID):
		api.writeJSON(ctx, w, http.StatusBadRequest, deleteResponse{Error: "invalid id"})
		return
	case err != nil:
		log.FromContext(ctx).Error(ctx, err, "playable delete failed", "id", id)
		api.writeJSON(ctx, w, http.StatusInternalServerError, deleteResponse{Error: "delete failed"})
		return
	}

	api.opts.Metrics.IncDeletes()
	api.refreshStored(ctx)
	log.FromContext(ctx).Info(ctx, "playable deleted", "id", id)
	api.writeJSON(ctx, w, http.StatusOK, deleteResponse{Success: true})
}

// renderAdmin renders the admin page with status, showing uploadErr above
// the upload form when set.
func (api *API) renderAdmin(w http.ResponseWriter, r *http.Request, status int, uploadErr string) {
	ctx := r.Context()

	entries, err := api.opts.Store.List()
	if err != nil {
		log.FromContext(ctx).Error(ctx, err, "list playables failed")
		http.Error(w, "failed to list playables", http.StatusInternalServerError)
		return
	}
	api.opts.Metrics.SetStored(len(entries))

	page := adminPage{
		Playables:     make([]playableView, 0, len(entries)),
		UploadError:   uploadErr,
		MaxUploadSize: units.BytesSize(float64(api.opts.MaxUploadSize)),
	}
	for _, e := range entries {
		v := playableView{
			ID:       e.ID,
			Ready:    e.HasEntryHTML,
			ViewPath: "/view/" + url.PathEscape(e.ID),
		}
		v.ViewURL = api.opts.BaseURL + v.ViewPath
		if !e.CreatedAt.IsZero() {
			v.CreatedAt = e.CreatedAt.UTC().Format(time.DateTime + " MST")
		}
		page.Playables = append(page.Playables, v)
	}

	api.render(ctx, w, status, "admin.html", page)
}

func (api *API) refreshStored(ctx context.Context) {
	entries, err := api.opts.Store.List()
	if err != nil {
		log.FromContext(ctx).Warn(ctx, "count playables failed", "error", err)
		return
	}
	api.opts.Metrics.SetStored(len(entries))
}

// render executes a page into a buffer first so a template error still
// produces a clean 500.
func (api *API) render(ctx context.Context, w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := api.opts.Templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(ctx).Error(ctx, err, "render template failed", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
