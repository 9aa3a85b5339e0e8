package content

import (
	"errors"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
)

var (
	ErrInvalidID      = errors.New("invalid playable id")
	ErrAlreadyExists  = errors.New("playable already exists")
	ErrTooManyEntries = errors.New("archive has too many entries")
	ErrUnsafePath     = errors.New("unsafe archive entry path")
	ErrFileTooLarge   = errors.New("file too large")
	ErrIO             = errors.New("i/o error")

	// ErrUnsupportedUpload is returned by CheckUpload for anything other than
	// an .html file declared as text/html or a .zip declared as a zip type.
	ErrUnsupportedUpload = errors.New("unsupported upload type")
)

// Reason maps an error from this package to a short stable label used in
// metrics and client-facing messages. Unknown errors map to "internal".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, pathutil.ErrPathEscape):
		return "path_escape"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrTooManyEntries):
		return "too_many_entries"
	case errors.Is(err, ErrUnsafePath):
		return "unsafe_path"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrUnsupportedUpload):
		return "unsupported_type"
	case errors.Is(err, ErrIO):
		return "io_error"
	default:
		return "internal"
	}
}
