package sitehandler

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// ServedFile is a resolved, servable file inside a playable directory.
type ServedFile struct {
	Path        string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Resolve maps (id, rel) to a file. Checks run in a fixed order and the
// first failure wins: id, relative path, containment, existence, type.
// Nothing is read from disk before the id and path checks pass.
func (h *Handler) Resolve(id, rel string) (ServedFile, error) {
	if !pathutil.IsSafeIdentifier(id) || strings.HasPrefix(id, ".") {
		return ServedFile{}, ErrInvalidID
	}
	if !pathutil.IsSafeRelativePath(rel) {
		return ServedFile{}, ErrInvalidPath
	}

	dir, err := pathutil.ResolvesInside(h.opts.Root, id)
	if err != nil {
		return ServedFile{}, containmentError(err)
	}
	p, err := pathutil.ResolvesInside(dir, rel)
	if err != nil {
		return ServedFile{}, containmentError(err)
	}

	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return ServedFile{}, ErrNotFound
	}

	ct, ok := ContentTypeFor(p)
	if !ok {
		return ServedFile{}, ErrTypeNotAllowed
	}

	return ServedFile{
		Path:        p,
		ContentType: ct,
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
	}, nil
}

func containmentError(err error) error {
	if errors.Is(err, pathutil.ErrPathEscape) {
		return ErrPathEscape
	}
	// a path that cannot be evaluated cannot be shown to be inside
	return xerrors.Wrap(ErrPathEscape, err.Error())
}
