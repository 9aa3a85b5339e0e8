package adminhttp

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/keithlinneman/playable-preview/internal/content"
	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/mirror"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// uploadField is the multipart field carrying the file
const uploadField = "playable"

var errNoFile = errors.New("no file uploaded")

// uploadMessages are shown on the admin page, keyed by content.Reason
var uploadMessages = map[string]string{
	"no_file":          "no file uploaded",
	"unsupported_type": "only .html files (text/html) and .zip archives are accepted",
	"file_too_large":   "file is too large",
	"too_many_entries": "archive has too many entries",
	"unsafe_path":      "archive contains an unsafe path",
	"io_error":         "file could not be read or stored",
	"bad_request":      "malformed upload",
}

// HandleUpload streams the "playable" part to a staging file, ingests it and
// redirects back to the admin page. Rejected uploads re-render the page with
// the error kind.
func (api *API) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	L := log.FromContext(ctx)
	start := time.Now()

	up, err := api.stage(r)
	if err != nil {
		api.uploadFailed(w, r, "", 0, err)
		return
	}
	defer func() {
		if err := up.Staged.Remove(); err != nil {
			L.Warn(ctx, "failed to remove staged upload", "error", err)
		}
	}()

	res, err := api.opts.Store.Ingest(ctx, up)
	if err != nil {
		kind, _ := content.CheckUpload(up.Filename, up.ContentType)
		api.opts.Metrics.IncExtractFailure(content.Reason(err))
		api.uploadFailed(w, r, string(kind), up.Staged.Size, err)
		return
	}

	if err := api.opts.Mirror.Put(ctx, mirror.Object{
		ID:       res.ID,
		Filename: up.Filename,
		Kind:     string(res.Kind),
		Path:     up.Staged.Path,
		Size:     up.Staged.Size,
		SHA256:   up.Staged.SHA256,
	}); err != nil {
		api.opts.Metrics.IncMirrorError()
		L.Error(ctx, err, "mirror upload failed", "id", res.ID)
	}

	api.opts.Metrics.ObserveUpload(string(res.Kind), "ok", up.Staged.Size, time.Since(start).Seconds())
	api.refreshStored(ctx)
	L.Info(ctx, "playable uploaded",
		"id", res.ID,
		"kind", string(res.Kind),
		"entry", res.EntryHTML,
		"bytes", up.Staged.Size,
	)

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// stage finds the upload part and copies it to the staging directory.
// Other form fields are skipped.
func (api *API) stage(r *http.Request) (content.Upload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return content.Upload{}, xerrors.Wrap(errBadRequest, err.Error())
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return content.Upload{}, errNoFile
		}
		if err != nil {
			return content.Upload{}, xerrors.Wrap(err, "read multipart")
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		return api.stagePart(part)
	}
}

func (api *API) stagePart(part *multipart.Part) (content.Upload, error) {
	defer part.Close()

	up := content.Upload{
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
	}
	// reject by name and type before spending disk on the body
	if _, err := content.CheckUpload(up.Filename, up.ContentType); err != nil {
		return up, err
	}

	st, err := content.Stage(part, api.opts.StagingDir, api.opts.MaxUploadSize)
	if err != nil {
		return up, err
	}
	up.Staged = st
	return up, nil
}

var errBadRequest = errors.New("bad request")

// uploadFailed records the failure and re-renders the admin page.
func (api *API) uploadFailed(w http.ResponseWriter, r *http.Request, kind string, size int64, err error) {
	ctx := r.Context()

	reason, status := classifyUpload(err)
	result := "rejected"
	if status >= http.StatusInternalServerError {
		result = "error"
		log.FromContext(ctx).Error(ctx, err, "upload failed", "reason", reason)
	} else {
		log.FromContext(ctx).Warn(ctx, "upload rejected", "reason", reason, "error", err)
	}

	api.opts.Metrics.ObserveUpload(kind, result, size, 0)

	msg, ok := uploadMessages[reason]
	if !ok {
		msg = "internal error"
	}
	api.renderAdmin(w, r, status, reason+": "+msg)
}

// classifyUpload maps an upload error to its reason label and HTTP status.
func classifyUpload(err error) (string, int) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, errNoFile):
		return "no_file", http.StatusBadRequest
	case errors.Is(err, errBadRequest), errors.Is(err, multipart.ErrMessageTooLarge):
		return "bad_request", http.StatusBadRequest
	case errors.As(err, &tooBig):
		return "file_too_large", http.StatusRequestEntityTooLarge
	}

	reason := content.Reason(err)
	switch reason {
	case "unsupported_type", "file_too_large", "too_many_entries", "unsafe_path", "io_error":
		return reason, http.StatusBadRequest
	default:
		return reason, http.StatusInternalServerError
	}
}
