// Package flac extracts metadata from native FLAC streams: STREAMINFO for
// the audio properties and duration, VORBIS_COMMENT for tags and PICTURE
// blocks for the front cover.
package flac

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/registry"
	"github.com/simonhull/metastream/internal/types"
	"github.com/simonhull/metastream/internal/vorbis"
)

// Metadata block types
const (
	blockTypeStreamInfo    = 0
	blockTypePadding       = 1
	blockTypeApplication   = 2
	blockTypeSeekTable     = 3
	blockTypeVorbisComment = 4
	blockTypeCueSheet      = 5
	blockTypePicture       = 6
)

const (
	streamInfoLength = 34

	// maxPicture bounds a PICTURE block that is read into memory.
	maxPicture = 16 << 20
)

var blockNames = map[byte]string{
	blockTypeStreamInfo:    "STREAMINFO",
	blockTypePadding:       "PADDING",
	blockTypeApplication:   "APPLICATION",
	blockTypeSeekTable:     "SEEKTABLE",
	blockTypeVorbisComment: "VORBIS_COMMENT",
	blockTypeCueSheet:      "CUESHEET",
	blockTypePicture:       "PICTURE",
}

// BlockName returns the name of a metadata block type.
func BlockName(t byte) string {
	if name, ok := blockNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RESERVED(%d)", t)
}

func init() {
	registry.Register(types.FormatFLAC, &extractor{})
}

// extractor implements registry.Extractor.
type extractor struct{}

func (e *extractor) Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	return Extract(ctx, src, opts)
}

// blockHeader is the 4-byte header before every metadata block.
type blockHeader struct {
	Last   bool
	Type   byte
	Length int64
}

func parseBlockHeader(h uint32) blockHeader {
	return blockHeader{
		Last:   h>>31 == 1,
		Type:   byte(h>>24) & 0x7F,
		Length: int64(h & 0xFFFFFF),
	}
}

// Extract reads a FLAC stream. A missing marker or a malformed STREAMINFO
// block yields a *types.CorruptedFileError. Problems in later blocks end
// the walk with a warning and keep what was found.
func Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	opts = opts.Normalize()

	md := types.NewMetadata(types.FormatFLAC)
	md.FileName = src.Name
	md.FileSize = src.Size
	c := types.NewCollector(md)

	r := binary.NewChunkReader(src.R, src.Size, opts.Buffers.Lookahead)
	if err := r.Fill(ctx, 4+4+streamInfoLength); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &types.CorruptedFileError{Path: src.Name, Reason: "file too short for FLAC header"}
		}
		return nil, fmt.Errorf("read FLAC header: %w", err)
	}

	magic, _ := r.Next(4)
	if string(magic) != "fLaC" {
		return nil, &types.CorruptedFileError{Path: src.Name, Reason: "invalid FLAC magic bytes"}
	}

	raw, _ := r.Uint32BE()
	hdr := parseBlockHeader(raw)
	if hdr.Type != blockTypeStreamInfo || hdr.Length != streamInfoLength {
		return nil, &types.CorruptedFileError{
			Path:   src.Name,
			Offset: 4,
			Reason: fmt.Sprintf("first block must be a 34-byte STREAMINFO, got type %d length %d", hdr.Type, hdr.Length),
		}
	}
	info, _ := r.Next(streamInfoLength)
	if err := readStreamInfo(info, c); err != nil {
		return nil, &types.CorruptedFileError{Path: src.Name, Offset: 8, Reason: err.Error()}
	}

	w := &walker{r: r, c: c, opts: opts}
	if !hdr.Last {
		if err := w.walk(ctx); err != nil {
			return nil, err
		}
	}

	if md.LengthMS > 0 {
		audioBytes := src.Size - r.Pos()
		md.Audio.Bitrate = int(audioBytes * 8 * 1000 / md.LengthMS)
	}
	return md, nil
}

// readStreamInfo unpacks the STREAMINFO body. Bytes 10-17 hold the packed
// word: 20-bit sample rate, 3-bit channels-1, 5-bit bits-per-sample-1 and
// a 36-bit total sample count.
func readStreamInfo(b []byte, c *types.Collector) error {
	hi := uint32(b[10])<<24 | uint32(b[11])<<16 | uint32(b[12])<<8 | uint32(b[13])
	lo := uint32(b[14])<<24 | uint32(b[15])<<16 | uint32(b[16])<<8 | uint32(b[17])

	sampleRate := hi >> 12
	channels := (hi>>9)&0x7 + 1
	bpsField := (hi >> 4) & 0x1F
	totalSamples := int64(hi&0xF)<<32 | int64(lo)

	if sampleRate == 0 {
		return errors.New("STREAMINFO sample rate is zero")
	}
	if bpsField == 0 {
		return errors.New("STREAMINFO bits-per-sample field is zero")
	}

	audio := &c.Metadata().Audio
	audio.Codec = "FLAC"
	audio.Lossless = true
	audio.SampleRate = int(sampleRate)
	audio.Channels = int(channels)
	audio.BitDepth = int(bpsField + 1)

	c.SetNumber(types.FieldLength, totalSamples*1000/int64(sampleRate))
	return nil
}

// walker holds the state of the metadata block walk after STREAMINFO.
type walker struct {
	r    *binary.ChunkReader
	c    *types.Collector
	opts *types.ExtractOptions
}

func (w *walker) warn(format string, args ...any) {
	w.c.Metadata().Warn("flac", w.r.Pos(), format, args...)
}

func (w *walker) walk(ctx context.Context) error {
	r := w.r
	for {
		if err := r.Fill(ctx, 4); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				w.warn("metadata ends without a last-block flag")
				return nil
			}
			return err
		}
		raw, _ := r.Uint32BE()
		hdr := parseBlockHeader(raw)
		start := r.Pos()

		if hdr.Length == 0 {
			w.opts.Logger.Debug("flac: zero-length block ends walk", "type", BlockName(hdr.Type), "offset", start)
			return nil
		}
		if start+hdr.Length > r.Size() {
			w.warn("%s block length %d overflows file", BlockName(hdr.Type), hdr.Length)
			return nil
		}

		switch hdr.Type {
		case blockTypeVorbisComment:
			if err := vorbis.Decode(ctx, vorbis.FromChunkReader(r), hdr.Length, w.c, w.opts); err != nil {
				return fmt.Errorf("decode VORBIS_COMMENT: %w", err)
			}
		case blockTypePicture:
			if w.opts.AlbumArt && !w.c.Metadata().HasAlbumArt() {
				if err := w.readPicture(ctx, hdr.Length); err != nil {
					return err
				}
			}
		}

		// resync on the declared length whatever the block reader consumed
		if rest := start + hdr.Length - r.Pos(); rest > 0 {
			r.Skip(rest)
		}
		if hdr.Last {
			return nil
		}
	}
}

// readPicture reads a PICTURE block when it holds the front cover.
func (w *walker) readPicture(ctx context.Context, length int64) error {
	if err := w.r.Fill(ctx, 4); err != nil {
		return fmt.Errorf("read picture type: %w", err)
	}
	head, _ := w.r.Peek(4)
	if typ, _ := vorbis.PictureType(head); typ != types.PictureFrontCover {
		return nil
	}
	if length > maxPicture {
		w.warn("PICTURE block too large: %d bytes", length)
		return nil
	}

	buf := w.opts.Buffers.TempN(int(length))
	if _, err := w.r.ReadFull(ctx, buf); err != nil {
		return fmt.Errorf("read PICTURE block: %w", err)
	}
	pic, err := vorbis.ParsePicture(buf)
	if err != nil {
		w.warn("PICTURE: %v", err)
		return nil
	}
	md := w.c.Metadata()
	md.AlbumArt = bytes.Clone(pic.Data)
	md.AlbumArtMIME = pic.MIME
	return nil
}

// Block describes one metadata block, for dump tooling.
type Block struct {
	Type   byte
	Name   string
	Offset int64 // of the block header
	Length int64
	Last   bool
}

// Blocks lists the metadata blocks of a FLAC stream without decoding them.
func Blocks(ctx context.Context, src types.Source) ([]Block, error) {
	r := binary.NewChunkReader(src.R, src.Size, make([]byte, binary.MinBufferSize))
	if err := r.Fill(ctx, 4); err != nil {
		return nil, fmt.Errorf("read FLAC marker: %w", err)
	}
	magic, _ := r.Next(4)
	if string(magic) != "fLaC" {
		return nil, &types.CorruptedFileError{Path: src.Name, Reason: "invalid FLAC magic bytes"}
	}

	var blocks []Block
	for {
		offset := r.Pos()
		if err := r.Fill(ctx, 4); err != nil {
			return blocks, fmt.Errorf("read block header at %d: %w", offset, err)
		}
		raw, _ := r.Uint32BE()
		hdr := parseBlockHeader(raw)
		blocks = append(blocks, Block{
			Type:   hdr.Type,
			Name:   BlockName(hdr.Type),
			Offset: offset,
			Length: hdr.Length,
			Last:   hdr.Last,
		})
		if hdr.Last || r.Pos()+hdr.Length > r.Size() {
			return blocks, nil
		}
		r.Skip(hdr.Length)
	}
}
