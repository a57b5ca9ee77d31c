// Package binary provides the byte-level readers every framer is built on:
// ChunkReader for sequential windowed reads and SafeReader for
// bounds-checked random access.
package binary

import (
	"errors"
	"fmt"
	"io"
)

// ErrOutOfRange is wrapped by every SafeReader error for a read that does
// not fit inside the source.
var ErrOutOfRange = errors.New("read outside source")

// SafeReader gives bounds-checked access to fixed positions of a source.
// The framers stream through a ChunkReader; SafeReader serves the jumps
// around them: the ID3v1 trailer, a trailing ID3v2 header, the MPEG sync
// window, the first Ogg page during detection and the tail pages that
// hold the final granule position.
type SafeReader struct {
	r    io.ReaderAt
	name string
	size int64
}

// NewSafeReader returns a SafeReader over size bytes of r. name only
// appears in error messages.
func NewSafeReader(r io.ReaderAt, size int64, name string) *SafeReader {
	return &SafeReader{r: r, name: name, size: size}
}

// Size returns the source size.
func (sr *SafeReader) Size() int64 { return sr.size }

// ReadAt fills b from offset off. what names the structure being read.
func (sr *SafeReader) ReadAt(b []byte, off int64, what string) error {
	if off < 0 || off+int64(len(b)) > sr.size {
		return fmt.Errorf("%s: %s: %d bytes at offset %d, size %d: %w",
			sr.name, what, len(b), off, sr.size, ErrOutOfRange)
	}

	n, err := sr.r.ReadAt(b, off)
	if n == len(b) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%s: read %s at offset %d: %w", sr.name, what, off, err)
}

// Window reads up to n bytes starting at off, clamped to the end of the
// source.
func (sr *SafeReader) Window(off, n int64, what string) ([]byte, error) {
	if off < 0 || off > sr.size {
		return nil, fmt.Errorf("%s: %s: offset %d, size %d: %w", sr.name, what, off, sr.size, ErrOutOfRange)
	}
	buf := make([]byte, min(n, sr.size-off))
	if err := sr.ReadAt(buf, off, what); err != nil {
		return nil, err
	}
	return buf, nil
}

// Tail reads the last n bytes of the source, or all of it when shorter,
// and returns them with their starting offset.
func (sr *SafeReader) Tail(n int64, what string) (int64, []byte, error) {
	start := max(sr.size-n, 0)
	buf, err := sr.Window(start, n, what)
	return start, buf, err
}

// Byte reads the single byte at off.
func (sr *SafeReader) Byte(off int64, what string) (byte, error) {
	var b [1]byte
	if err := sr.ReadAt(b[:], off, what); err != nil {
		return 0, err
	}
	return b[0], nil
}
