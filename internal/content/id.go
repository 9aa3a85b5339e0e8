package content

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/keithlinneman/playable-preview/internal/pathutil"
)

// maxNameLen bounds the sanitized upload name before its extension is dropped
const maxNameLen = 50

// NewID builds a playable id from an upload's original filename and a
// millisecond timestamp: {millis}_{name}, where name is the sanitized
// filename truncated to 50 bytes with its last extension removed.
func NewID(filename string, millis int64) string {
	name := pathutil.SanitizeName(filename, maxNameLen)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.TrimRight(name, ".")
	if name == "" {
		name = "playable"
	}
	return strconv.FormatInt(millis, 10) + "_" + name
}

// nextMillis returns the current time in milliseconds, bumped so that two
// calls on the same store never return the same value.
func (s *Store) nextMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.lastTS {
		ms = s.lastTS + 1
	}
	s.lastTS = ms
	return ms
}

// timeOf recovers the creation time encoded in an id, if any.
func timeOf(id string) (time.Time, bool) {
	ts, _, ok := strings.Cut(id, "_")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
