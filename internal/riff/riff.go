// Package riff walks RIFF/WAVE chunk structure: the fmt and data chunks for
// duration, LIST/INFO for tag text, and the id3 chunk some writers append
// after the audio.
package riff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/text"
	"github.com/simonhull/metastream/internal/types"
)

var (
	idRIFF = binary.FourCC("RIFF")
	idWAVE = binary.FourCC("WAVE")
	idFmt  = binary.FourCC("fmt ")
	idData = binary.FourCC("data")
	idList = binary.FourCC("LIST")
	idInfo = binary.FourCC("INFO")
	idID3  = binary.FourCC("id3 ")
	idID3u = binary.FourCC("ID3 ")
)

// infoFields maps LIST/INFO sub-chunk codes to the field they carry.
var infoFields = map[uint32]types.Field{
	binary.FourCC("INAM"): types.FieldTitle,
	binary.FourCC("IPRD"): types.FieldAlbum,
	binary.FourCC("IART"): types.FieldArtist,
	binary.FourCC("ICRD"): types.FieldYear,
	binary.FourCC("ITRK"): types.FieldTrack,
}

// maxInfoValue bounds a single INFO string. Longer values are skipped.
const maxInfoValue = 64 * 1024

// Result describes what the walk saw.
type Result struct {
	// ID3Follows is set when an id3 chunk was reached after fmt and data.
	// The reader is then positioned three bytes into the "ID3" signature,
	// at the version byte of the ID3v2 header.
	ID3Follows bool

	HasFormat bool
	HasData   bool

	DataLength     int64
	AvgBytesPerSec uint32
}

// walker carries the state of one walk.
type walker struct {
	r    *binary.ChunkReader
	c    *types.Collector
	log  *slog.Logger
	path string
	temp *types.Buffers
	res  Result
}

// Walk parses a RIFF/WAVE stream from the current reader position, which
// must be at the "RIFF" signature. Fields found in LIST/INFO go through c;
// the duration is set from fmt and data once both are known.
//
// A malformed or overflowing chunk length aborts the walk with a
// *types.CorruptedFileError, unless fmt and data were already seen, in
// which case the walk stops and what was collected stands.
func Walk(ctx context.Context, r *binary.ChunkReader, c *types.Collector, opts *types.ExtractOptions, path string) (Result, error) {
	w := &walker{r: r, c: c, log: opts.Logger, path: path, temp: opts.Buffers}
	err := w.walk(ctx)
	w.finish()
	return w.res, err
}

func (w *walker) corrupted(reason string) error {
	return &types.CorruptedFileError{Path: w.path, Reason: reason, Offset: w.r.Pos()}
}

// satisfied reports whether the walk already has enough to stand on its own.
func (w *walker) satisfied() bool {
	return w.res.HasFormat && w.res.HasData
}

func (w *walker) walk(ctx context.Context) error {
	r := w.r
	if err := r.Fill(ctx, 12); err != nil {
		return fmt.Errorf("read RIFF header: %w", err)
	}
	magic, _ := r.Uint32BE()
	riffLen, _ := r.Uint32LE()
	form, _ := r.Uint32BE()
	if magic != idRIFF {
		return w.corrupted("missing RIFF signature")
	}
	if int64(riffLen)+8 > r.Size() {
		return w.corrupted(fmt.Sprintf("RIFF length %d exceeds file size %d", riffLen, r.Size()))
	}
	if form != idWAVE {
		return w.corrupted("RIFF form is not WAVE")
	}

	for r.Pos()+8 <= r.Size() {
		if err := r.Fill(ctx, 8); err != nil {
			return w.stop(err)
		}
		id, _ := r.Uint32BE()
		length, _ := r.Uint32LE()
		start := r.Pos()
		size := int64(length)

		if start+size > r.Size() {
			// Truncated final data chunks are common; the length still
			// counts for the duration.
			if id == idData && w.res.HasFormat {
				w.res.HasData = true
				w.res.DataLength = r.Size() - start
				return nil
			}
			if w.satisfied() {
				w.log.Debug("riff: chunk overflows file, keeping what was found",
					"chunk", fourCCString(id), "length", length, "offset", start)
				return nil
			}
			return w.corrupted(fmt.Sprintf("chunk %q length %d overflows file", fourCCString(id), length))
		}

		switch id {
		case idFmt:
			if err := w.readFormat(ctx, size); err != nil {
				return err
			}
		case idData:
			w.res.HasData = true
			w.res.DataLength = size
		case idList:
			if err := w.readList(ctx, size); err != nil {
				return err
			}
		case idID3, idID3u:
			if w.satisfied() {
				found, err := w.handoff(ctx, size)
				if err != nil || found {
					return err
				}
			}
		}

		// chunks are word aligned
		next := start + size + size&1
		r.Skip(next - r.Pos())
	}
	return nil
}

// stop converts a read failure at a chunk boundary into the walk result.
func (w *walker) stop(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		if w.satisfied() {
			return nil
		}
		return w.corrupted("truncated chunk header")
	}
	return err
}

// readFormat parses a WAVEFORMAT header. Only the first 16 bytes matter.
func (w *walker) readFormat(ctx context.Context, size int64) error {
	if size < 16 {
		return w.corrupted(fmt.Sprintf("fmt chunk too short: %d bytes", size))
	}
	if err := w.r.Fill(ctx, 16); err != nil {
		return fmt.Errorf("read fmt chunk: %w", err)
	}
	audioFormat, _ := w.r.Uint16LE()
	channels, _ := w.r.Uint16LE()
	sampleRate, _ := w.r.Uint32LE()
	avgBytes, _ := w.r.Uint32LE()
	_, _ = w.r.Uint16LE() // block align
	bits, _ := w.r.Uint16LE()

	w.res.HasFormat = true
	w.res.AvgBytesPerSec = avgBytes

	audio := &w.c.Metadata().Audio
	audio.Codec = codecName(audioFormat)
	audio.Channels = int(channels)
	audio.SampleRate = int(sampleRate)
	audio.BitDepth = int(bits)
	audio.Bitrate = int(avgBytes) * 8
	audio.Lossless = audioFormat == 1 || audioFormat == 3 || audioFormat == 0xFFFE
	return nil
}

func codecName(format uint16) string {
	switch format {
	case 1:
		return "PCM"
	case 3:
		return "IEEE float"
	case 0x55:
		return "MP3"
	case 0xFFFE:
		return "PCM extensible"
	default:
		return fmt.Sprintf("WAVE 0x%04x", format)
	}
}

// readList handles a LIST chunk. Only the INFO list type is walked.
func (w *walker) readList(ctx context.Context, size int64) error {
	if size < 4 {
		return nil
	}
	if err := w.r.Fill(ctx, 4); err != nil {
		return fmt.Errorf("read LIST type: %w", err)
	}
	listType, _ := w.r.Uint32BE()
	if listType != idInfo {
		return nil
	}
	return w.readInfo(ctx, w.r.Pos()+size-4)
}

func (w *walker) readInfo(ctx context.Context, end int64) error {
	r := w.r
	for r.Pos()+8 <= end {
		if err := r.Fill(ctx, 8); err != nil {
			return w.stop(err)
		}
		id, _ := r.Uint32BE()
		length, _ := r.Uint32LE()
		size := int64(length)
		if r.Pos()+size > end {
			if w.satisfied() {
				return nil
			}
			return w.corrupted(fmt.Sprintf("INFO entry %q overflows its list", fourCCString(id)))
		}
		next := min(r.Pos()+size+size&1, end)

		field, ok := infoFields[id]
		if ok && !w.c.Found(field) && size > 0 && size <= maxInfoValue {
			buf := w.temp.TempN(int(size))
			if _, err := r.ReadFull(ctx, buf); err != nil {
				return fmt.Errorf("read INFO %s: %w", fourCCString(id), err)
			}
			value := text.RIFFInfo(buf)
			switch field {
			case types.FieldYear, types.FieldTrack:
				w.c.SetNumber(field, int64(text.LeadingInt(value)))
			default:
				w.c.SetText(field, value)
			}
		}
		if skip := next - r.Pos(); skip > 0 {
			r.Skip(skip)
		}
	}
	return nil
}

// handoff checks that the id3 chunk really starts with an ID3v2 header and
// leaves the reader just past the "ID3" signature. Without the signature
// the reader is left at the chunk start.
func (w *walker) handoff(ctx context.Context, size int64) (bool, error) {
	if size < 10 {
		return false, nil
	}
	if err := w.r.Fill(ctx, 3); err != nil {
		return false, fmt.Errorf("read id3 chunk: %w", err)
	}
	sig, _ := w.r.Peek(3)
	if string(sig) != "ID3" {
		w.log.Debug("riff: id3 chunk without ID3 signature", "offset", w.r.Pos())
		return false, nil
	}
	w.r.Skip(3)
	w.res.ID3Follows = true
	return true, nil
}

// finish derives the duration once fmt and data are known.
func (w *walker) finish() {
	if !w.satisfied() || w.res.AvgBytesPerSec == 0 {
		return
	}
	ms := w.res.DataLength * 1000 / int64(w.res.AvgBytesPerSec)
	w.c.SetNumber(types.FieldLength, ms)
}

func fourCCString(id uint32) string {
	return string([]byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)})
}
