// Package vorbis decodes Vorbis comment blocks.
//
// Vorbis comments are used by both FLAC and Ogg Vorbis/Opus. The layout is
// the same everywhere: a length-prefixed vendor string, a comment count,
// then length-prefixed UTF-8 "KEY=VALUE" entries with little-endian
// lengths. Keys are case-insensitive.
package vorbis

import (
	"bytes"
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

// Source is the byte stream a comment block is read from. For FLAC it is
// the file itself; for Ogg it is the logical stream reassembled from pages.
type Source interface {
	ReadFull(ctx context.Context, p []byte) (int, error)
	Skip(ctx context.Context, n int64) error
	// Pos is used for warning offsets only.
	Pos() int64
}

// Unbounded tells Decode that the block has no declared length.
const Unbounded = -1

const (
	// maxKeyLen is the longest key worth recognising, plus the '='.
	maxKeyLen = len("METADATA_BLOCK_PICTURE") + 1

	maxTextValue    = 1 << 20
	maxPictureValue = 32 << 20
)

// errBlockEnd reports a length running past the block or the stream.
var errBlockEnd = errors.New("comment runs past end of block")

type commentHandler struct {
	// wanted reports whether the value is worth reading at all.
	wanted func(d *decoder) bool
	apply  func(d *decoder, value []byte)
	limit  int
}

func textField(f types.Field) commentHandler {
	return commentHandler{
		wanted: func(d *decoder) bool { return !d.c.Found(f) },
		apply:  func(d *decoder, v []byte) { d.c.SetText(f, text.Comment(v)) },
		limit:  maxTextValue,
	}
}

func numberField(f types.Field) commentHandler {
	return commentHandler{
		wanted: func(d *decoder) bool { return !d.c.Found(f) },
		apply: func(d *decoder, v []byte) {
			d.c.SetNumber(f, int64(text.LeadingInt(text.Comment(v))))
		},
		limit: maxTextValue,
	}
}

// fallbackArtist fills slot i of the artist fallback chain. The chain is
// only consulted when the block has no ARTIST entry at all.
func fallbackArtist(i int) commentHandler {
	return commentHandler{
		wanted: func(d *decoder) bool { return d.fallback[i] == "" },
		apply:  func(d *decoder, v []byte) { d.fallback[i] = text.Comment(v) },
		limit:  maxTextValue,
	}
}

var handlers = map[string]commentHandler{
	"TITLE":       textField(types.FieldTitle),
	"ALBUM":       textField(types.FieldAlbum),
	"TRACKNUMBER": numberField(types.FieldTrack),
	"DATE":        numberField(types.FieldYear),
	"ARTIST": {
		wanted: func(*decoder) bool { return true },
		apply: func(d *decoder, v []byte) {
			d.sawArtist = true
			d.c.AppendArtist(text.Comment(v))
		},
		limit: maxTextValue,
	},
	"PERFORMER":   fallbackArtist(0),
	"ALBUMARTIST": fallbackArtist(1),
	"COMPOSER":    fallbackArtist(2),
	"METADATA_BLOCK_PICTURE": {
		wanted: func(d *decoder) bool {
			return d.opts.AlbumArt && !d.c.Metadata().HasAlbumArt()
		},
		apply: (*decoder).picture,
		limit: maxPictureValue,
	},
}

type decoder struct {
	src  Source
	c    *types.Collector
	opts *types.ExtractOptions
	log  *slog.Logger

	left      int64 // bytes left in the block; negative when unbounded
	sawArtist bool
	fallback  [3]string // PERFORMER, ALBUMARTIST, COMPOSER
}

// Decode reads one comment block from src into c. limit is the declared
// block length, or Unbounded.
//
// A malformed entry is skipped with a warning and the list goes on. A
// length that runs past the block or the stream ends the list; what was
// collected stands. Only I/O failures and cancellation are returned.
func Decode(ctx context.Context, src Source, limit int64, c *types.Collector, opts *types.ExtractOptions) error {
	d := &decoder{src: src, c: c, opts: opts, log: opts.Logger, left: limit}
	err := d.decode(ctx)
	d.resolveArtist()
	if errors.Is(err, errBlockEnd) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		c.Metadata().Warn("vorbis", src.Pos(), "comment block truncated: %v", err)
		return nil
	}
	return err
}

func (d *decoder) decode(ctx context.Context) error {
	vendorLen, err := d.uint32(ctx)
	if err != nil {
		return fmt.Errorf("read vendor length: %w", err)
	}
	if err := d.skip(ctx, int64(vendorLen)); err != nil {
		return fmt.Errorf("skip vendor string: %w", err)
	}

	count, err := d.uint32(ctx)
	if err != nil {
		return fmt.Errorf("read comment count: %w", err)
	}

	for i := uint32(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		length, err := d.uint32(ctx)
		if err != nil {
			return fmt.Errorf("comment %d: %w", i, err)
		}
		if err := d.entry(ctx, i, int64(length)); err != nil {
			return fmt.Errorf("comment %d: %w", i, err)
		}
	}
	return nil
}

// entry reads the key of one comment and hands the value to its handler,
// or skips the value unread.
func (d *decoder) entry(ctx context.Context, i uint32, length int64) error {
	if d.left >= 0 && length > d.left {
		return fmt.Errorf("%w: length %d, %d left", errBlockEnd, length, d.left)
	}
	offset := d.src.Pos()

	var prefix [maxKeyLen]byte
	head := prefix[:min(length, int64(maxKeyLen))]
	if err := d.read(ctx, head); err != nil {
		return err
	}
	rest := length - int64(len(head))

	eq := bytes.IndexByte(head, '=')
	if eq < 0 {
		if rest == 0 {
			d.c.Metadata().Warn("vorbis", offset, "comment %d has no '=' separator", i)
		}
		return d.skip(ctx, rest)
	}

	key := string(bytes.ToUpper(head[:eq]))
	h, ok := handlers[key]
	if !ok || !h.wanted(d) {
		return d.skip(ctx, rest)
	}

	valueLen := int64(len(head)-eq-1) + rest
	if valueLen > int64(h.limit) {
		d.c.Metadata().Warn("vorbis", offset, "comment %s too large: %d bytes", key, valueLen)
		return d.skip(ctx, rest)
	}

	value := d.opts.Buffers.TempN(int(valueLen))
	n := copy(value, head[eq+1:])
	if err := d.read(ctx, value[n:]); err != nil {
		return err
	}
	h.apply(d, value)
	return nil
}

// picture decodes a base64 METADATA_BLOCK_PICTURE value in place.
func (d *decoder) picture(value []byte) {
	n, err := decodeBase64(value)
	if err != nil {
		d.c.Metadata().Warn("vorbis", d.src.Pos(), "METADATA_BLOCK_PICTURE: %v", err)
		return
	}
	raw := value[:n]

	if typ, ok := PictureType(raw); !ok || typ != types.PictureFrontCover {
		d.log.Debug("vorbis: skipping picture", "type", typ)
		return
	}
	pic, err := ParsePicture(raw)
	if err != nil {
		d.c.Metadata().Warn("vorbis", d.src.Pos(), "METADATA_BLOCK_PICTURE: %v", err)
		return
	}
	md := d.c.Metadata()
	md.AlbumArt = bytes.Clone(pic.Data)
	md.AlbumArtMIME = pic.MIME
}

// resolveArtist applies the PERFORMER, ALBUMARTIST, COMPOSER fallback when
// no ARTIST entry was present.
func (d *decoder) resolveArtist() {
	if d.sawArtist {
		return
	}
	for _, name := range d.fallback {
		if d.c.SetText(types.FieldArtist, name) {
			return
		}
	}
}

func (d *decoder) uint32(ctx context.Context) (uint32, error) {
	var b [4]byte
	if err := d.read(ctx, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (d *decoder) read(ctx context.Context, p []byte) error {
	if d.left >= 0 {
		if int64(len(p)) > d.left {
			return errBlockEnd
		}
		d.left -= int64(len(p))
	}
	_, err := d.src.ReadFull(ctx, p)
	return err
}

func (d *decoder) skip(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	if d.left >= 0 {
		if n > d.left {
			return errBlockEnd
		}
		d.left -= n
	}
	return d.src.Skip(ctx, n)
}

// chunkSource adapts a ChunkReader to Source.
type chunkSource struct {
	r *binutil.ChunkReader
}

// FromChunkReader returns a Source reading straight from r.
func FromChunkReader(r *binutil.ChunkReader) Source {
	return chunkSource{r: r}
}

func (s chunkSource) ReadFull(ctx context.Context, p []byte) (int, error) {
	return s.r.ReadFull(ctx, p)
}

func (s chunkSource) Skip(ctx context.Context, n int64) error {
	if n > s.r.Remaining() {
		s.r.Skip(s.r.Remaining())
		return io.ErrUnexpectedEOF
	}
	s.r.Skip(n)
	return ctx.Err()
}

func (s chunkSource) Pos() int64 { return s.r.Pos() }
