package binary

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// MinBufferSize is the smallest lookahead window a ChunkReader accepts.
	// It must hold a full Ogg page header with a 255-entry segment table.
	MinBufferSize = 512

	// DefaultBufferSize is used when the supplied buffer is too small.
	DefaultBufferSize = 16 * 1024
)

var (
	// ErrBufferUnderrun is returned by the typed reads when fewer bytes are
	// buffered than requested. Callers must Fill first.
	ErrBufferUnderrun = errors.New("chunk reader: buffer underrun")

	// ErrRequestTooLarge is returned by Fill when the requested minimum
	// exceeds the buffer capacity.
	ErrRequestTooLarge = errors.New("chunk reader: request exceeds buffer capacity")
)

// ChunkReader is a sequential reader over an io.ReaderAt that keeps a single
// fixed-size lookahead window in memory. Typed reads are served from the
// window only; Fill is the one place that performs I/O.
//
// A ChunkReader is owned by a single extraction and is not safe for
// concurrent use.
type ChunkReader struct {
	src  io.ReaderAt
	size int64
	buf  []byte
	off  int   // next unread byte in buf
	end  int   // one past the last valid byte in buf
	pos  int64 // stream position of buf[off]
	eof  bool
}

// NewChunkReader creates a reader over the first size bytes of src using buf
// as its window. A buf shorter than MinBufferSize is replaced by a fresh
// DefaultBufferSize slice.
func NewChunkReader(src io.ReaderAt, size int64, buf []byte) *ChunkReader {
	if len(buf) < MinBufferSize {
		buf = make([]byte, DefaultBufferSize)
	}
	return &ChunkReader{
		src:  src,
		size: size,
		buf:  buf,
		eof:  size <= 0,
	}
}

// ReadAt reads len(p) bytes at off straight from the source. The window and
// position are left untouched.
func (r *ChunkReader) ReadAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > r.size {
		return fmt.Errorf("read %d bytes at %d of %d: %w", len(p), off, r.size, ErrOutOfRange)
	}
	n, err := r.src.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}

// Size returns the length of the underlying source.
func (r *ChunkReader) Size() int64 { return r.size }

// Pos returns the stream position of the next unread byte.
func (r *ChunkReader) Pos() int64 { return r.pos }

// Buffered returns how many unread bytes are in the window.
func (r *ChunkReader) Buffered() int { return r.end - r.off }

// Cap returns the window capacity.
func (r *ChunkReader) Cap() int { return len(r.buf) }

// EOF reports whether the source has been read to its end. Buffered bytes
// may remain.
func (r *ChunkReader) EOF() bool { return r.eof }

// Remaining returns the number of unread bytes in the source.
func (r *ChunkReader) Remaining() int64 { return r.size - r.pos }

// Fill makes at least min bytes available in the window. It does nothing
// when enough bytes are already buffered. Otherwise it moves the unread
// bytes to the front of the window and issues one ReadAt for the rest of
// the capacity.
//
// A min of zero or less asks for a full window and never fails on a short
// read at the end of the source.
func (r *ChunkReader) Fill(ctx context.Context, min int) error {
	opportunistic := min <= 0
	if opportunistic {
		min = len(r.buf)
	}
	if min > len(r.buf) {
		return fmt.Errorf("%w: %d > %d", ErrRequestTooLarge, min, len(r.buf))
	}
	if r.Buffered() >= min {
		return nil
	}
	if !r.eof {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.readMore(); err != nil {
			return err
		}
	}
	if r.Buffered() < min && !opportunistic {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (r *ChunkReader) readMore() error {
	if r.off > 0 {
		r.end = copy(r.buf, r.buf[r.off:r.end])
		r.off = 0
	}

	at := r.pos + int64(r.end)
	want := int64(len(r.buf) - r.end)
	if left := r.size - at; left < want {
		want = left
	}
	if want <= 0 {
		r.eof = true
		return nil
	}

	n, err := r.src.ReadAt(r.buf[r.end:r.end+int(want)], at)
	r.end += n
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %d bytes at offset %d: %w", want, at, err)
	}
	if n == 0 || at+int64(n) >= r.size {
		r.eof = true
	}
	return nil
}

// Peek returns the next n buffered bytes without consuming them. The slice
// aliases the window and is only valid until the next Fill.
func (r *ChunkReader) Peek(n int) ([]byte, error) {
	if r.Buffered() < n {
		return nil, ErrBufferUnderrun
	}
	return r.buf[r.off : r.off+n], nil
}

// Next consumes and returns the next n buffered bytes. Like Peek, the slice
// aliases the window.
func (r *ChunkReader) Next(n int) ([]byte, error) {
	b, err := r.Peek(n)
	if err != nil {
		return nil, err
	}
	r.consume(n)
	return b, nil
}

func (r *ChunkReader) consume(n int) {
	r.off += n
	r.pos += int64(n)
}

// ReadByte consumes one buffered byte.
func (r *ChunkReader) ReadByte() (byte, error) {
	if r.Buffered() < 1 {
		return 0, ErrBufferUnderrun
	}
	b := r.buf[r.off]
	r.consume(1)
	return b, nil
}

// Uint16BE consumes a big-endian uint16.
func (r *ChunkReader) Uint16BE() (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint16LE consumes a little-endian uint16.
func (r *ChunkReader) Uint16LE() (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint24BE consumes a big-endian 24-bit value.
func (r *ChunkReader) Uint24BE() (uint32, error) {
	b, err := r.Next(3)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// Uint32BE consumes a big-endian uint32.
func (r *ChunkReader) Uint32BE() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint32LE consumes a little-endian uint32.
func (r *ChunkReader) Uint32LE() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64LE consumes a little-endian uint64.
func (r *ChunkReader) Uint64LE() (uint64, error) {
	b, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Float32BE consumes a big-endian IEEE 754 float.
func (r *ChunkReader) Float32BE() (float32, error) {
	v, err := r.Uint32BE()
	return math.Float32frombits(v), err
}

// Float32LE consumes a little-endian IEEE 754 float.
func (r *ChunkReader) Float32LE() (float32, error) {
	v, err := r.Uint32LE()
	return math.Float32frombits(v), err
}

// Skip advances the position by n bytes. Buffered bytes are consumed first;
// the remainder is position bookkeeping only and costs no I/O.
func (r *ChunkReader) Skip(n int64) {
	if n <= 0 {
		return
	}
	if n <= int64(r.Buffered()) {
		r.consume(int(n))
		return
	}
	r.pos += n
	r.off, r.end = 0, 0
	if r.pos >= r.size {
		r.eof = true
	}
}

// SeekTo drops the window and moves to pos.
func (r *ChunkReader) SeekTo(pos int64) {
	r.off, r.end = 0, 0
	r.pos = pos
	r.eof = pos >= r.size
}

// ReadFull copies len(dst) bytes into dst, draining the window first and
// reading the rest directly from the source. It returns the number of bytes
// copied: io.EOF when nothing was left and io.ErrUnexpectedEOF on a short
// read.
func (r *ChunkReader) ReadFull(ctx context.Context, dst []byte) (int, error) {
	n := copy(dst, r.buf[r.off:r.end])
	r.consume(n)
	if n == len(dst) {
		return n, nil
	}

	if err := ctx.Err(); err != nil {
		return n, err
	}

	want := int64(len(dst) - n)
	if left := r.size - r.pos; left < want {
		want = left
	}
	r.off, r.end = 0, 0
	if want > 0 {
		got, err := r.src.ReadAt(dst[n:n+int(want)], r.pos)
		r.pos += int64(got)
		n += got
		if err != nil && !errors.Is(err, io.EOF) {
			return n, fmt.Errorf("read %d bytes at offset %d: %w", want, r.pos, err)
		}
	}
	if r.pos >= r.size {
		r.eof = true
	}

	switch {
	case n == len(dst):
		return n, nil
	case n == 0:
		return 0, io.EOF
	default:
		return n, io.ErrUnexpectedEOF
	}
}
