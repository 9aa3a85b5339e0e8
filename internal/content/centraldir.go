package content

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zip"
)

const (
	endSig        = 0x06054b50
	endLen        = 22
	zip64LocSig   = 0x07064b50
	zip64LocLen   = 20
	zip64EndSig   = 0x06064b50
	zip64EndLen   = 56
	centralSig    = 0x02014b50
	centralHdrLen = 46
	maxCommentLen = 0xffff
)

// dirLocation is where the central directory starts in the file and the
// offset the end record declares for it. They differ when data precedes the
// archive.
type dirLocation struct {
	start    int64
	declared int64
}

// openBounded returns a reader that sees at most limit+1 central directory
// records. The directory is stepped over one header at a time, so an archive
// carrying far more headers than limit is never parsed past the first
// limit+1 of them. When fewer headers exist the file is opened as is.
func openBounded(r io.ReaderAt, size int64, limit int) (*zip.Reader, error) {
	loc, err := locateDirectory(r, size)
	if err != nil {
		return nil, err
	}
	cut, more := walkDirectory(r, loc.start, size, limit+1)
	if !more {
		return zip.NewReader(r, size)
	}
	if limit+1 >= 0xffff || loc.declared >= 0xffffffff {
		return nil, ErrTooManyEntries
	}

	end := make([]byte, endLen)
	binary.LittleEndian.PutUint32(end[0:], endSig)
	binary.LittleEndian.PutUint16(end[8:], uint16(limit+1))
	binary.LittleEndian.PutUint16(end[10:], uint16(limit+1))
	binary.LittleEndian.PutUint32(end[12:], uint32(cut))
	binary.LittleEndian.PutUint32(end[16:], uint32(loc.declared))

	head := loc.start + cut
	return zip.NewReader(&splicedReaderAt{head: r, headLen: head, tail: end}, head+endLen)
}

// locateDirectory finds the central directory the same way the zip reader
// does: from the end record, or the zip64 end record when the plain one is
// saturated.
func locateDirectory(r io.ReaderAt, size int64) (dirLocation, error) {
	tailLen := min(size, endLen+maxCommentLen)
	tail := make([]byte, tailLen)
	if err := readFullAt(r, tail, size-tailLen); err != nil {
		return dirLocation{}, err
	}
	i := len(tail) - endLen
	for ; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:]) == endSig {
			break
		}
	}
	if i < 0 {
		return dirLocation{}, zip.ErrFormat
	}
	endAt := size - tailLen + int64(i)
	rec := tail[i : i+endLen]
	records := binary.LittleEndian.Uint16(rec[10:])
	dirSize := int64(binary.LittleEndian.Uint32(rec[12:]))
	dirOff := int64(binary.LittleEndian.Uint32(rec[16:]))

	if records == 0xffff || dirSize == 0xffffffff || dirOff == 0xffffffff {
		// zip64 locator sits directly before the end record
		locAt := endAt - zip64LocLen
		if locAt < 0 {
			return dirLocation{}, zip.ErrFormat
		}
		l := make([]byte, zip64LocLen)
		if err := readFullAt(r, l, locAt); err != nil {
			return dirLocation{}, err
		}
		if binary.LittleEndian.Uint32(l) != zip64LocSig {
			return dirLocation{}, zip.ErrFormat
		}
		endAt = int64(binary.LittleEndian.Uint64(l[8:]))
		if endAt < 0 || endAt > size-zip64EndLen {
			return dirLocation{}, zip.ErrFormat
		}
		e := make([]byte, zip64EndLen)
		if err := readFullAt(r, e, endAt); err != nil {
			return dirLocation{}, err
		}
		if binary.LittleEndian.Uint32(e) != zip64EndSig {
			return dirLocation{}, zip.ErrFormat
		}
		dirSize = int64(binary.LittleEndian.Uint64(e[40:]))
		dirOff = int64(binary.LittleEndian.Uint64(e[48:]))
	}

	start := endAt - dirSize
	if dirSize < 0 || dirOff < 0 || start < 0 {
		return dirLocation{}, zip.ErrFormat
	}
	return dirLocation{start: start, declared: dirOff}, nil
}

// walkDirectory steps over at most n central directory headers from off. It
// returns their combined length and whether another header follows them.
func walkDirectory(r io.ReaderAt, off, size int64, n int) (int64, bool) {
	br := bufio.NewReader(io.NewSectionReader(r, off, size-off))
	var walked int64
	for i := 0; ; i++ {
		hdr, err := br.Peek(centralHdrLen)
		if err != nil || binary.LittleEndian.Uint32(hdr) != centralSig {
			return walked, false
		}
		if i == n {
			return walked, true
		}
		l := centralHdrLen +
			int(binary.LittleEndian.Uint16(hdr[28:])) +
			int(binary.LittleEndian.Uint16(hdr[30:])) +
			int(binary.LittleEndian.Uint16(hdr[32:]))
		d, err := br.Discard(l)
		walked += int64(d)
		if err != nil {
			return walked, false
		}
	}
}

func readFullAt(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// splicedReaderAt reads the first headLen bytes of head followed by tail.
type splicedReaderAt struct {
	head    io.ReaderAt
	headLen int64
	tail    []byte
}

func (s *splicedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	if off < s.headLen {
		m := int(min(int64(len(p)), s.headLen-off))
		k, err := s.head.ReadAt(p[:m], off)
		n += k
		if k < m {
			return n, err
		}
		off += int64(k)
	}
	if n == len(p) {
		return n, nil
	}
	t := off - s.headLen
	if t >= int64(len(s.tail)) {
		return n, io.EOF
	}
	n += copy(p[n:], s.tail[t:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
