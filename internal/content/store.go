package content

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// tombstones are renamed-away playables waiting for removal; List skips them
const tombstonePrefix = ".trash-"

// Entry is one row of a store listing.
type Entry struct {
	ID           string
	HasEntryHTML bool

	// CreatedAt is decoded from the id; zero for ids not minted by NewID
	CreatedAt time.Time
}

type Store struct {
	root      string
	logger    log.Logger
	extractor *Extractor

	mu     sync.Mutex
	lastTS int64
	now    func() time.Time
}

type StoreOption func(*Store)

func WithLogger(l log.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLimits sets the archive limits used by Ingest.
func WithLimits(l Limits) StoreOption {
	return func(s *Store) { s.extractor = NewExtractor(l) }
}

func withClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore opens (creating if needed) the store rooted at root and removes
// tombstones left behind by an interrupted delete.
func NewStore(root string, opts ...StoreOption) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, xerrors.New("store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve store root %s", root)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, xerrors.Wrapf(err, "create store root %s", abs)
	}

	s := &Store{
		root:      abs,
		logger:    log.Nop(),
		extractor: NewExtractor(Limits{}),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	s.sweepTombstones()
	return s, nil
}

func (s *Store) Root() string { return s.root }

// Create makes a new empty content directory for id and returns its path.
func (s *Store) Create(id string) (string, error) {
	dir, err := s.dir(id)
	if err != nil {
		return "", err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", xerrors.Wrapf(ErrAlreadyExists, "playable %s", id)
		}
		return "", ioError("create playable "+id, err)
	}
	return dir, nil
}

// List returns a snapshot of every playable directory, newest first.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.root)
	if err != nil {
		return nil, ioError("list store", err)
	}

	out := make([]Entry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if !de.IsDir() || strings.HasPrefix(name, ".") || !pathutil.IsSafeIdentifier(name) {
			continue
		}
		_, ok, err := s.FindEntryHTML(name)
		if err != nil {
			return nil, err
		}
		created, _ := timeOf(name)
		out = append(out, Entry{ID: name, HasEntryHTML: ok, CreatedAt: created})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// FindEntryHTML returns the slash separated path, relative to the playable's
// directory, of the file to load first: the shallowest regular file with an
// .html extension (any case), ties broken lexicographically. ok is false when
// the playable has no such file or does not exist.
func (s *Store) FindEntryHTML(id string) (rel string, ok bool, err error) {
	dir, err := s.dir(id)
	if err != nil {
		return "", false, err
	}

	var found []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(path.Ext(d.Name()), ".html") {
			return nil
		}
		r, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(r))
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, ioError("scan playable "+id, err)
	}
	if len(found) == 0 {
		return "", false, nil
	}

	sort.Slice(found, func(i, j int) bool {
		di, dj := strings.Count(found[i], "/"), strings.Count(found[j], "/")
		if di != dj {
			return di < dj
		}
		return found[i] < found[j]
	})
	return found[0], true, nil
}

// Delete removes the playable id. The directory is first renamed to a
// tombstone so concurrent readers see either all of it or nothing, then
// removed recursively. Deleting a missing playable is not an error.
func (s *Store) Delete(id string) error {
	dir, err := s.dir(id)
	if err != nil {
		return err
	}

	tomb := filepath.Join(s.root, tombstonePrefix+id+"-"+strconv.FormatInt(s.now().UnixNano(), 10))
	if err := os.Rename(dir, tomb); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ioError("delete playable "+id, err)
	}
	if err := os.RemoveAll(tomb); err != nil {
		return ioError("remove playable "+id, err)
	}
	return nil
}

// Exists reports whether id names an existing playable directory.
func (s *Store) Exists(id string) (bool, error) {
	dir, err := s.dir(id)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ioError("stat playable "+id, err)
	}
	return fi.IsDir(), nil
}

// Ready reports whether the store root is still a writable directory.
func (s *Store) Ready() error {
	fi, err := os.Stat(s.root)
	if err != nil {
		return xerrors.Wrap(err, "stat store root")
	}
	if !fi.IsDir() {
		return xerrors.Newf("store root %s is not a directory", s.root)
	}
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return xerrors.Wrap(err, "store root not writable")
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// dir validates id and resolves its directory inside the store root.
// Dot-prefixed names are reserved for the store's own bookkeeping.
func (s *Store) dir(id string) (string, error) {
	if !pathutil.IsSafeIdentifier(id) || strings.HasPrefix(id, ".") {
		return "", xerrors.Wrapf(ErrInvalidID, "%q", id)
	}
	dir, err := pathutil.ResolvesInside(s.root, id)
	if err != nil {
		return "", xerrors.Wrapf(err, "playable %q", id)
	}
	return dir, nil
}

func (s *Store) sweepTombstones() {
	des, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, de := range des {
		if !strings.HasPrefix(de.Name(), tombstonePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, de.Name())); err != nil {
			s.logger.Warn(context.Background(), "failed to remove stale tombstone", "name", de.Name(), "error", err)
		}
	}
}
