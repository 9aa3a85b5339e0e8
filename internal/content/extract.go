package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

const (
	// DefaultMaxEntries is the maximum number of entries (files and
	// directories) read from one archive
	DefaultMaxEntries = 1000

	// DefaultMaxEntrySize is the maximum uncompressed size of a single entry
	DefaultMaxEntrySize int64 = 10 * 1024 * 1024 // 10MiB

	// DefaultMaxTotalSize is the maximum total size of extracted content
	DefaultMaxTotalSize int64 = 100 * 1024 * 1024 // 100MiB
)

// Layout controls where extracted files land relative to the destination.
type Layout int

const (
	// LayoutFlatten writes every file directly under the destination using
	// only the final element of its name. Later entries with the same base
	// name replace earlier ones.
	LayoutFlatten Layout = iota

	// LayoutPreserve keeps the archive's directory structure.
	LayoutPreserve
)

func (l Layout) String() string {
	if l == LayoutPreserve {
		return "preserve"
	}
	return "flatten"
}

type Limits struct {
	MaxEntries   int
	MaxEntrySize int64
	MaxTotalSize int64
	Layout       Layout
}

func (l *Limits) setDefaults() {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	if l.MaxEntrySize <= 0 {
		l.MaxEntrySize = DefaultMaxEntrySize
	}
	if l.MaxTotalSize <= 0 {
		l.MaxTotalSize = DefaultMaxTotalSize
	}
}

// Extractor materializes ZIP archives into a directory.
type Extractor struct {
	limits Limits
}

func NewExtractor(limits Limits) *Extractor {
	limits.setDefaults()
	return &Extractor{limits: limits}
}

func (x *Extractor) Limits() Limits { return x.limits }

// Extract reads archivePath one entry at a time, in archive order, and writes
// its regular files under destDir. Central directory headers past
// MaxEntries+1 are never parsed. It stops at the first failure; files
// already written stay in place and the caller owns removing destDir.
//
// Per entry, in order: the running entry count is checked against
// MaxEntries, the raw name must pass pathutil.IsSafeRelativePath, directory
// entries are skipped, the declared size is checked against MaxEntrySize and
// the remaining total budget, and only then are bytes copied, through a
// limit reader in case the declared size lies.
func (x *Extractor) Extract(ctx context.Context, archivePath, destDir string) error {
	af, err := os.Open(archivePath)
	if err != nil {
		return ioError("open archive", err)
	}
	defer af.Close()
	st, err := af.Stat()
	if err != nil {
		return ioError("stat archive", err)
	}

	zr, err := openBounded(af, st.Size(), x.limits.MaxEntries)
	if errors.Is(err, ErrTooManyEntries) {
		return xerrors.Wrapf(err, "more than %d entries", x.limits.MaxEntries)
	}
	if zr == nil {
		return ioError("open archive", err)
	}
	// a reader returned alongside an error means some names were flagged
	// insecure; those entries are rejected individually below
	var (
		count int
		total int64
	)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return xerrors.Wrap(err, "extract archive")
		}

		count++
		if count > x.limits.MaxEntries {
			return xerrors.Wrapf(ErrTooManyEntries, "more than %d entries", x.limits.MaxEntries)
		}

		n, err := x.extractEntry(destDir, f, x.limits.MaxTotalSize-total)
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func (x *Extractor) extractEntry(destDir string, f *zip.File, remaining int64) (int64, error) {
	name := f.Name
	if !pathutil.IsSafeRelativePath(name) {
		return 0, xerrors.Wrapf(ErrUnsafePath, "entry %q", name)
	}

	// directories are implicit
	if strings.HasSuffix(name, "/") || f.FileInfo().IsDir() {
		return 0, nil
	}
	if !f.Mode().IsRegular() {
		return 0, xerrors.Wrapf(ErrUnsafePath, "entry %q is not a regular file (mode %s)", name, f.Mode())
	}

	if f.UncompressedSize64 > uint64(x.limits.MaxEntrySize) {
		return 0, xerrors.Wrapf(ErrFileTooLarge, "entry %q declares %d bytes, limit %d",
			name, f.UncompressedSize64, x.limits.MaxEntrySize)
	}
	if f.UncompressedSize64 > uint64(max(remaining, 0)) {
		return 0, xerrors.Wrapf(ErrFileTooLarge, "entry %q exceeds total extract limit %d",
			name, x.limits.MaxTotalSize)
	}

	rel := x.targetName(name)
	target, err := pathutil.ResolvesInside(destDir, rel)
	if err != nil {
		return 0, xerrors.Wrapf(ErrUnsafePath, "entry %q: %v", name, err)
	}
	if x.limits.Layout == LayoutPreserve {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, ioError(fmt.Sprintf("create directory for %q", name), err)
		}
	}

	rc, err := f.Open()
	if err != nil {
		return 0, ioError(fmt.Sprintf("open entry %q", name), err)
	}
	defer rc.Close()

	return writeFile(target, rc, min(x.limits.MaxEntrySize, remaining))
}

// targetName maps an already validated entry name onto the destination layout.
func (x *Extractor) targetName(name string) string {
	clean := path.Clean(name)
	if x.limits.Layout == LayoutPreserve {
		return clean
	}
	return path.Base(clean)
}

// writeFile creates dst and copies at most limit bytes from r into it.
// Reading limit+1 bytes means the source was larger than allowed.
func writeFile(dst string, r io.Reader, limit int64) (int64, error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, ioError("create "+filepath.Base(dst), err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, ioError("write "+filepath.Base(dst), err)
	}
	if n > limit {
		return n, xerrors.Wrapf(ErrFileTooLarge, "%s exceeds %d bytes", filepath.Base(dst), limit)
	}
	return n, nil
}

func ioError(op string, err error) error {
	return xerrors.Wrap(fmt.Errorf("%w: %w", ErrIO, err), op)
}
