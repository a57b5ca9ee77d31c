package ogg

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/types"
)

const (
	pageHeaderSize = 27

	// Header type flags
	flagContinued = 0x01
	flagBOS       = 0x02
	flagEOS       = 0x04

	// maxHeaderPages bounds the search for the comment header.
	maxHeaderPages = 64
)

var (
	// ErrBadPage is returned when a page header does not parse.
	ErrBadPage = errors.New("ogg: malformed page header")

	// ErrNoCommentHeader is returned when the stream has no comment header
	// within its first pages.
	ErrNoCommentHeader = errors.New("ogg: no comment header found")
)

// Codec identifies the codec of the logical stream.
type Codec uint8

const (
	CodecUnknown Codec = iota
	CodecVorbis
	CodecOpus
)

func (c Codec) String() string {
	switch c {
	case CodecVorbis:
		return "Vorbis"
	case CodecOpus:
		return "Opus"
	default:
		return "unknown"
	}
}

// PageHeader is the fixed part of a physical page plus the summed segment
// table.
type PageHeader struct {
	Offset     int64 // of the capture pattern
	HeaderType byte
	Granule    int64
	Serial     uint32
	Sequence   uint32
	Segments   int
	Length     int64 // payload bytes
}

// Continued reports whether the page continues a packet from the previous
// page.
func (h PageHeader) Continued() bool { return h.HeaderType&flagContinued != 0 }

// BOS reports a beginning-of-stream page.
func (h PageHeader) BOS() bool { return h.HeaderType&flagBOS != 0 }

// EOS reports an end-of-stream page.
func (h PageHeader) EOS() bool { return h.HeaderType&flagEOS != 0 }

// StreamInfo is what the identification header told us.
type StreamInfo struct {
	Codec      Codec
	Serial     uint32
	Channels   int
	SampleRate int // Opus streams always report 48000
	Bitrate    int // nominal, Vorbis only
	PreSkip    int // Opus only
}

// Stream presents the payload of consecutive Ogg pages as one logical byte
// stream. It wraps a ChunkReader and re-parses page headers whenever the
// current page runs out, so reads and skips cross page boundaries without
// the caller noticing.
//
// Stream is not seekable.
type Stream struct {
	r    *binutil.ChunkReader
	path string

	page    PageHeader
	started bool  // a page header has been read
	left    int64 // payload bytes not yet consumed in page
	info    StreamInfo
}

// NewStream returns a Stream reading pages from r, which must be
// positioned at a capture pattern.
func NewStream(r *binutil.ChunkReader, path string) *Stream {
	return &Stream{r: r, path: path}
}

// Info returns the identification header fields seen so far.
func (s *Stream) Info() StreamInfo { return s.info }

// Page returns the header of the current page.
func (s *Stream) Page() PageHeader { return s.page }

// Pos returns the physical position in the file.
func (s *Stream) Pos() int64 { return s.r.Pos() }

// nextPage parses the next physical page header. The previous page's
// payload must have been consumed.
func (s *Stream) nextPage(ctx context.Context) error {
	r := s.r
	offset := r.Pos()
	if err := r.Fill(ctx, pageHeaderSize); err != nil {
		return err
	}
	hdr, _ := r.Peek(pageHeaderSize)
	if string(hdr[0:4]) != "OggS" {
		return fmt.Errorf("%w: missing OggS capture pattern at offset %d", ErrBadPage, offset)
	}
	if hdr[4] != 0 {
		return fmt.Errorf("%w: stream structure version %d at offset %d", ErrBadPage, hdr[4], offset)
	}
	segments := int(hdr[26])
	if err := r.Fill(ctx, pageHeaderSize+segments); err != nil {
		return fmt.Errorf("ogg: truncated segment table at offset %d: %w", offset, err)
	}

	hdr, _ = r.Next(pageHeaderSize + segments)
	page := PageHeader{
		Offset:     offset,
		HeaderType: hdr[5],
		Granule:    int64(binary.LittleEndian.Uint64(hdr[6:14])),
		Serial:     binary.LittleEndian.Uint32(hdr[14:18]),
		Sequence:   binary.LittleEndian.Uint32(hdr[18:22]),
		Segments:   segments,
	}
	for _, lace := range hdr[pageHeaderSize:] {
		page.Length += int64(lace)
	}
	s.page = page
	s.started = true
	s.left = page.Length
	return nil
}

// advance moves to the next page of the same logical stream once the
// current one is used up. Pages of other multiplexed streams are skipped.
// Before the first page any serial is accepted.
func (s *Stream) advance(ctx context.Context) error {
	serial, locked := s.page.Serial, s.started
	for {
		if err := s.nextPage(ctx); err != nil {
			return err
		}
		if !locked {
			serial, locked = s.page.Serial, true
		}
		if s.page.Serial == serial && s.left > 0 {
			return nil
		}
		s.skipPayload()
	}
}

// skipPayload discards whatever is left of the current page.
func (s *Stream) skipPayload() {
	s.r.Skip(s.left)
	s.left = 0
}

// ReadFull fills p from the logical stream.
func (s *Stream) ReadFull(ctx context.Context, p []byte) (int, error) {
	done := 0
	for done < len(p) {
		if s.left == 0 {
			if err := s.advance(ctx); err != nil {
				return done, err
			}
		}
		n := int(min(int64(len(p)-done), s.left))
		got, err := s.r.ReadFull(ctx, p[done:done+n])
		done += got
		s.left -= int64(got)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return done, err
		}
	}
	return done, nil
}

// Skip discards n bytes of the logical stream. Payload bytes are skipped
// without I/O; only page headers on the way are read.
func (s *Stream) Skip(ctx context.Context, n int64) error {
	for n > 0 {
		if s.left == 0 {
			if err := s.advance(ctx); err != nil {
				return err
			}
		}
		k := min(n, s.left)
		if s.r.Pos()+k > s.r.Size() {
			s.r.Skip(s.r.Remaining())
			s.left = 0
			return io.ErrUnexpectedEOF
		}
		s.r.Skip(k)
		s.left -= k
		n -= k
	}
	return nil
}

// Uint32LE reads a little-endian uint32 from the logical stream.
func (s *Stream) Uint32LE(ctx context.Context) (uint32, error) {
	var b [4]byte
	if _, err := s.ReadFull(ctx, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// FindInitialCommentPage scans pages for the identification and comment
// headers. Identification headers (Vorbis packet type 1, OpusHead) record
// the audio properties into c. On a comment header (Vorbis packet type 3,
// OpusTags) the stream is left at the start of the comment body and nil
// is returned.
//
// Pages whose signature does not validate are skipped whole. A broken
// capture pattern or segment table ends the search with an error.
func (s *Stream) FindInitialCommentPage(ctx context.Context, c *types.Collector) error {
	locked := false
	for range maxHeaderPages {
		if err := s.nextPage(ctx); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrNoCommentHeader
			}
			return err
		}
		if locked && s.page.Serial != s.info.Serial {
			s.skipPayload()
			continue
		}
		if s.page.Continued() || s.left < 7 {
			s.skipPayload()
			continue
		}

		want := int(min(s.left, 30))
		if err := s.r.Fill(ctx, want); err != nil {
			return fmt.Errorf("ogg: read packet header: %w", err)
		}
		head, _ := s.r.Peek(want)

		switch {
		case head[0] == 1 && string(head[1:7]) == "vorbis":
			if s.identifyVorbis(head, c) {
				locked = true
			}
		case len(head) >= 19 && string(head[0:8]) == "OpusHead":
			if s.identifyOpus(head, c) {
				locked = true
			}
		case head[0] == 3 && string(head[1:7]) == "vorbis" && s.info.Codec != CodecOpus:
			s.info.Serial = s.page.Serial
			s.consume(7)
			return nil
		case len(head) >= 8 && string(head[0:8]) == "OpusTags" && s.info.Codec != CodecVorbis:
			s.info.Serial = s.page.Serial
			s.consume(8)
			return nil
		}
		s.skipPayload()
	}
	return ErrNoCommentHeader
}

// consume drops n already-buffered bytes of the current page.
func (s *Stream) consume(n int) {
	s.r.Skip(int64(n))
	s.left -= int64(n)
}

// identifyVorbis reads a Vorbis identification header:
// type, "vorbis", version, channels, rate, max/nominal/min bitrate.
func (s *Stream) identifyVorbis(head []byte, c *types.Collector) bool {
	if len(head) < 30 || binary.LittleEndian.Uint32(head[7:11]) != 0 {
		return false
	}
	s.info = StreamInfo{
		Codec:      CodecVorbis,
		Serial:     s.page.Serial,
		Channels:   int(head[11]),
		SampleRate: int(binary.LittleEndian.Uint32(head[12:16])),
		Bitrate:    int(int32(binary.LittleEndian.Uint32(head[20:24]))),
	}
	audio := &c.Metadata().Audio
	audio.Codec = "Vorbis"
	audio.Channels = s.info.Channels
	audio.SampleRate = s.info.SampleRate
	audio.Bitrate = max(s.info.Bitrate, 0)
	audio.VBR = true
	return true
}

// identifyOpus reads an OpusHead packet. Opus always decodes at 48 kHz;
// the input rate stored in the header is informational.
func (s *Stream) identifyOpus(head []byte, c *types.Collector) bool {
	if head[8]>>4 != 0 {
		// major version must be 0
		return false
	}
	s.info = StreamInfo{
		Codec:      CodecOpus,
		Serial:     s.page.Serial,
		Channels:   int(head[9]),
		SampleRate: 48000,
		PreSkip:    int(binary.LittleEndian.Uint16(head[10:12])),
	}
	audio := &c.Metadata().Audio
	audio.Codec = "Opus"
	audio.Channels = s.info.Channels
	audio.SampleRate = s.info.SampleRate
	audio.VBR = true
	return true
}

// Pages walks every page header of the file, for dump tooling.
func Pages(ctx context.Context, src types.Source, fn func(PageHeader) error) error {
	r := binutil.NewChunkReader(src.R, src.Size, make([]byte, binutil.MinBufferSize))
	s := NewStream(r, src.Name)
	for r.Remaining() > 0 {
		if err := s.nextPage(ctx); err != nil {
			return err
		}
		if err := fn(s.page); err != nil {
			return err
		}
		s.skipPayload()
	}
	return nil
}
