package pathutil

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
)

// MaxIdentifierLen bounds identifiers used as directory names and URL segments.
const MaxIdentifierLen = 128

// ErrPathEscape is returned when a candidate resolves outside its root.
var ErrPathEscape = errors.New("path escapes root")

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// IsSafeRelativePath reports whether candidate can be joined onto a root
// without escaping it. Separators are forward slashes; backslashes, NUL
// bytes and any ".." sequence are rejected outright, as are absolute paths
// and names that normalize to the root itself.
func IsSafeRelativePath(candidate string) bool {
	if candidate == "" {
		return false
	}
	if strings.ContainsAny(candidate, "\x00\\") {
		return false
	}
	if strings.Contains(candidate, "..") {
		return false
	}
	if path.IsAbs(candidate) || filepath.IsAbs(candidate) || filepath.VolumeName(candidate) != "" {
		return false
	}
	clean := path.Clean(candidate)
	if clean == "." || clean == "/" || path.IsAbs(clean) {
		return false
	}
	return true
}

// IsSafeIdentifier reports whether candidate is non-empty, at most
// MaxIdentifierLen bytes and made only of [A-Za-z0-9._-]. The dot-only
// names "." and ".." match that class but name the current and parent
// directory, so they are refused too.
func IsSafeIdentifier(candidate string) bool {
	if candidate == "" || len(candidate) > MaxIdentifierLen {
		return false
	}
	if candidate == "." || candidate == ".." {
		return false
	}
	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// ResolvesInside joins candidate onto root and returns the absolute result
// when it lies strictly below root. Whatever part of that path already
// exists has its symlinks evaluated and must still land inside the evaluated
// root, so a planted link cannot point outside.
func ResolvesInside(root, candidate string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	absRoot = filepath.Clean(absRoot)

	target := filepath.Join(absRoot, filepath.FromSlash(candidate))
	if !within(absRoot, target) {
		return "", ErrPathEscape
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if notExist(err) {
			return target, nil
		}
		return "", err
	}

	// evaluate the deepest existing ancestor (or the target itself)
	for p := target; p != absRoot; p = filepath.Dir(p) {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			if notExist(err) {
				continue
			}
			return "", err
		}
		if within(realRoot, resolved) || (p != target && resolved == realRoot) {
			return target, nil
		}
		return "", ErrPathEscape
	}
	return target, nil
}

// notExist covers missing paths and files used as directories.
func notExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// within reports whether target is a strict descendant of root. Both must be clean.
func within(root, target string) bool {
	if target == root {
		return false
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	return strings.HasPrefix(target, prefix)
}
