package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// Kind is the upload format.
type Kind string

const (
	KindHTML Kind = "html"
	KindZIP  Kind = "zip"
)

// declared content types accepted per extension
var uploadTypes = map[string]Kind{
	"text/html":                    KindHTML,
	"application/zip":              KindZIP,
	"application/x-zip-compressed": KindZIP,
}

// CheckUpload is the intake filter: the filename must end in .html or .zip
// and the declared content type must belong to the same format.
func CheckUpload(filename, contentType string) (Kind, error) {
	var want Kind
	switch strings.ToLower(path.Ext(filename)) {
	case ".html":
		want = KindHTML
	case ".zip":
		want = KindZIP
	default:
		return "", xerrors.Wrapf(ErrUnsupportedUpload, "extension of %q", filename)
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", xerrors.Wrapf(ErrUnsupportedUpload, "content type %q", contentType)
	}
	if got, ok := uploadTypes[strings.ToLower(mt)]; !ok || got != want {
		return "", xerrors.Wrapf(ErrUnsupportedUpload, "content type %q for %s upload", mt, want)
	}
	return want, nil
}

// Staged is an upload copied to local disk.
type Staged struct {
	Path   string
	Size   int64
	SHA256 string
}

// Remove deletes the staged file.
func (st Staged) Remove() error {
	if st.Path == "" {
		return nil
	}
	return os.Remove(st.Path)
}

// Stage copies at most maxSize bytes of r into a new temp file in dir
// (os.TempDir when empty), hashing as it goes.
func Stage(r io.Reader, dir string, maxSize int64) (Staged, error) {
	f, err := os.CreateTemp(dir, "playable-upload-*")
	if err != nil {
		return Staged{}, ioError("create staging file", err)
	}
	st := Staged{Path: f.Name()}

	n, hash, err := copyWithHash(f, io.LimitReader(r, maxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = st.Remove()
		return Staged{}, ioError("stage upload", err)
	}
	if n > maxSize {
		_ = st.Remove()
		return Staged{}, xerrors.Wrapf(ErrFileTooLarge, "upload exceeds %d bytes", maxSize)
	}

	st.Size = n
	st.SHA256 = hash
	return st, nil
}

// copyWithHash copies from src to dst while computing SHA256
func copyWithHash(dst io.Writer, src io.Reader) (written int64, hash string, err error) {
	h := sha256.New()
	written, err = io.Copy(io.MultiWriter(dst, h), src)
	if err != nil {
		return written, "", err
	}
	return written, hex.EncodeToString(h.Sum(nil)), nil
}

// Upload describes a staged upload to ingest.
type Upload struct {
	Filename    string
	ContentType string
	Staged      Staged
}

// Result describes a newly created playable.
type Result struct {
	ID        string
	Kind      Kind
	EntryHTML string
	Duration  time.Duration
}

// Ingest creates a new playable from u. A ZIP is extracted with the store's
// limits; an HTML file is copied under its sanitized name. On any failure the
// new directory is removed before the error is returned, so a failed upload
// never leaves servable content behind.
func (s *Store) Ingest(ctx context.Context, u Upload) (Result, error) {
	start := s.now()

	kind, err := CheckUpload(u.Filename, u.ContentType)
	if err != nil {
		return Result{}, err
	}

	id := NewID(u.Filename, s.nextMillis())
	dir, err := s.Create(id)
	if err != nil {
		return Result{}, err
	}

	if err := s.populate(ctx, kind, u, dir); err != nil {
		if rerr := os.RemoveAll(dir); rerr != nil {
			s.logger.Error(ctx, rerr, "failed to remove partial playable", "id", id)
		}
		return Result{}, xerrors.Wrapf(err, "ingest %s", id)
	}

	entry, _, err := s.FindEntryHTML(id)
	if err != nil {
		return Result{}, err
	}

	res := Result{ID: id, Kind: kind, EntryHTML: entry, Duration: s.now().Sub(start)}
	s.logger.Info(ctx, "playable ingested",
		"id", id,
		"kind", string(kind),
		"entry", entry,
		"bytes", u.Staged.Size,
		"sha256", u.Staged.SHA256,
	)
	return res, nil
}

func (s *Store) populate(ctx context.Context, kind Kind, u Upload, dir string) error {
	switch kind {
	case KindZIP:
		return s.extractor.Extract(ctx, u.Staged.Path, dir)
	case KindHTML:
		return copyHTML(u.Staged.Path, dir, htmlName(u.Filename), s.extractor.limits.MaxTotalSize)
	default:
		return xerrors.Wrapf(ErrUnsupportedUpload, "kind %q", kind)
	}
}

// htmlName is the on-disk name for a single-file upload.
func htmlName(filename string) string {
	name := pathutil.SanitizeName(filename, 100)
	if !strings.EqualFold(path.Ext(name), ".html") || len(name) == len(".html") || !pathutil.IsSafeRelativePath(name) {
		return "index.html"
	}
	return name
}

func copyHTML(src, dir, name string, limit int64) error {
	in, err := os.Open(src)
	if err != nil {
		return ioError("open staged upload", err)
	}
	defer in.Close()

	target, err := pathutil.ResolvesInside(dir, name)
	if err != nil {
		return xerrors.Wrapf(ErrUnsafePath, "html name %q: %v", name, err)
	}
	_, err = writeFile(target, in, limit)
	return err
}
