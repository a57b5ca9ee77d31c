package id3

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/text"
	"github.com/simonhull/metastream/internal/types"
)

// frameFields maps the text frames worth decoding to their field. TYER
// (v2.3) and TDRC (v2.4) both feed the year; whichever comes first wins.
var frameFields = map[uint32]types.Field{
	binutil.FourCC("TIT2"): types.FieldTitle,
	binutil.FourCC("TPE1"): types.FieldArtist,
	binutil.FourCC("TALB"): types.FieldAlbum,
	binutil.FourCC("TRCK"): types.FieldTrack,
	binutil.FourCC("TLEN"): types.FieldLength,
	binutil.FourCC("TYER"): types.FieldYear,
	binutil.FourCC("TDRC"): types.FieldYear,
}

const (
	headerFlagUnsync   = 0x80
	headerFlagExtended = 0x40

	// maxTextFrame bounds the payload of a decoded text frame.
	maxTextFrame = 1 << 20
)

// tagHeader is the 10-byte ID3v2 header.
type tagHeader struct {
	Major    byte
	Revision byte
	Flags    byte
	Size     int64 // excludes the header itself
}

// decodeSize reads four 7-bit groups. Each byte is masked with 0x7f and
// the top bit is never validated, so a writer that stored a plain
// big-endian size still yields a usable (if wrong) value instead of a
// rejected tag.
func decodeSize(b []byte) int64 {
	return int64(b[0]&0x7f)<<21 | int64(b[1]&0x7f)<<14 | int64(b[2]&0x7f)<<7 | int64(b[3]&0x7f)
}

// isSynchsafe reports whether no byte has its top bit set.
func isSynchsafe(b []byte) bool {
	return (b[0]|b[1]|b[2]|b[3])&0x80 == 0
}

// v2Walker holds the state of one ID3v2 frame walk.
type v2Walker struct {
	r    *binutil.ChunkReader
	c    *types.Collector
	opts *types.ExtractOptions
	log  *slog.Logger
	path string
}

// readV2 walks an ID3v2 tag. The reader must be positioned just past the
// "ID3" signature. It returns the stream offset where the tag ends.
//
// Frames are only parsed for major versions 3 and above; older tags are
// skipped whole. The walk ends when the declared tag size is used up, a
// padding byte is hit, a frame length overflows the tag, or all six
// tracked fields have been found.
func (w *v2Walker) readV2(ctx context.Context) (tagEnd int64, err error) {
	r := w.r
	if err := r.Fill(ctx, 7); err != nil {
		return 0, fmt.Errorf("read ID3v2 header: %w", err)
	}
	raw, _ := r.Next(7)
	hdr := tagHeader{
		Major:    raw[0],
		Revision: raw[1],
		Flags:    raw[2],
		Size:     decodeSize(raw[3:7]),
	}
	tagEnd = r.Pos() + hdr.Size

	if hdr.Major < 3 {
		w.log.Debug("id3v2: frames not parsed for this version", "version", hdr.Major)
		return tagEnd, nil
	}
	if hdr.Flags&headerFlagUnsync != 0 {
		w.log.Debug("id3v2: unsynchronised tag, reading frames as stored")
	}
	if hdr.Flags&headerFlagExtended != 0 {
		if err := w.skipExtendedHeader(ctx, hdr.Major); err != nil {
			return tagEnd, err
		}
	}

	for r.Pos()+10 <= tagEnd && !w.c.Complete(types.AllFields) {
		if err := r.Fill(ctx, 10); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return tagEnd, err
		}
		fh, _ := r.Next(10)
		id := binary.BigEndian.Uint32(fh[0:4])
		if id == 0 || fh[0] == 0 {
			// padding
			break
		}
		size := w.frameSize(hdr.Major, fh[4:8], tagEnd)
		if size < 0 || r.Pos()+size > tagEnd {
			w.log.Debug("id3v2: frame overflows tag", "frame", string(fh[0:4]), "size", size)
			break
		}
		if size == 0 {
			continue
		}

		field, ok := frameFields[id]
		if !ok || w.c.Found(field) {
			r.Skip(size)
			continue
		}
		if err := w.readTextFrame(ctx, string(fh[0:4]), field, size); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				break
			}
			return tagEnd, err
		}
	}
	return tagEnd, nil
}

// frameSize decodes a frame length. v2.3 stores a plain big-endian size.
// v2.4 specifies a synchsafe size, but some v2.4 writers store plain sizes.
// A value with a top bit set can only be plain. Otherwise the synchsafe
// reading is kept unless it misses a frame boundary inside the tag and the
// plain reading hits one.
func (w *v2Walker) frameSize(major byte, b []byte, tagEnd int64) int64 {
	plain := int64(int32(binary.BigEndian.Uint32(b)))
	if major < 4 || !isSynchsafe(b) {
		return plain
	}
	safe := decodeSize(b)
	if safe == plain || w.frameBoundary(w.r.Pos()+safe, tagEnd) {
		return safe
	}
	if w.frameBoundary(w.r.Pos()+plain, tagEnd) {
		w.log.Debug("id3v2: plain frame size in v2.4 tag", "size", plain)
		return plain
	}
	return safe
}

// frameBoundary reports whether pos is the tag end, the start of padding or
// the start of a frame with a well-formed ID.
func (w *v2Walker) frameBoundary(pos, tagEnd int64) bool {
	if pos == tagEnd {
		return true
	}
	if pos > tagEnd {
		return false
	}
	var id [4]byte
	n := min(int64(len(id)), tagEnd-pos)
	if err := w.r.ReadAt(id[:n], pos); err != nil {
		return false
	}
	if id[0] == 0 {
		return true
	}
	if n < int64(len(id)) {
		return false
	}
	for _, c := range id {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func (w *v2Walker) skipExtendedHeader(ctx context.Context, major byte) error {
	if err := w.r.Fill(ctx, 4); err != nil {
		return fmt.Errorf("read ID3v2 extended header: %w", err)
	}
	b, _ := w.r.Next(4)
	if major >= 4 {
		// v2.4 counts the size field itself
		w.r.Skip(decodeSize(b) - 4)
	} else {
		w.r.Skip(int64(binary.BigEndian.Uint32(b)))
	}
	return nil
}

func (w *v2Walker) readTextFrame(ctx context.Context, id string, field types.Field, size int64) error {
	if size > maxTextFrame {
		w.c.Metadata().Warn("id3v2", w.r.Pos(), "frame %s too large to decode: %d bytes", id, size)
		w.r.Skip(size)
		return nil
	}

	offset := w.r.Pos()
	payload := w.opts.Buffers.TempN(int(size))
	if _, err := w.r.ReadFull(ctx, payload); err != nil {
		return err
	}

	value, ok := text.DecodeID3(payload)
	if !ok {
		w.c.Metadata().Warn("id3v2", offset, "frame %s has unknown text encoding %d", id, payload[0])
		w.log.Debug("id3v2: unknown text encoding", "frame", id, "encoding", payload[0])
		return nil
	}

	switch field {
	case types.FieldTrack, types.FieldYear, types.FieldLength:
		w.c.SetNumber(field, int64(text.LeadingInt(value)))
	default:
		w.c.SetText(field, value)
	}
	return nil
}
