// Package ogg extracts metadata from Ogg Vorbis and Ogg Opus files.
//
// The comment header of an Ogg stream is not stored contiguously: it is
// split across physical pages, each with its own header and segment
// table. Stream reassembles the logical byte stream so the shared Vorbis
// comment decoder can read it as if it were one block.
package ogg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/registry"
	"github.com/simonhull/metastream/internal/types"
	"github.com/simonhull/metastream/internal/vorbis"
)

// tailWindow is how far back from the end the last page is searched for.
const tailWindow = 64 * 1024

func init() {
	e := &extractor{}
	registry.Register(types.FormatOgg, e)
	registry.Register(types.FormatOpus, e)
}

// extractor implements registry.Extractor.
type extractor struct{}

func (e *extractor) Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	return Extract(ctx, src, opts)
}

// Extract reads the identification and comment headers of an Ogg stream.
// Ogg has no time index, so the result never carries FlagSeekable.
func Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	opts = opts.Normalize()

	md := types.NewMetadata(types.FormatOgg)
	md.Flags &^= types.FlagSeekable
	md.FileName = src.Name
	md.FileSize = src.Size
	c := types.NewCollector(md)

	r := binutil.NewChunkReader(src.R, src.Size, opts.Buffers.Lookahead)
	s := NewStream(r, src.Name)

	if err := s.FindInitialCommentPage(ctx, c); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &types.CorruptedFileError{Path: src.Name, Offset: r.Pos(), Reason: err.Error()}
	}
	if s.Info().Codec == CodecOpus {
		md.Format = types.FormatOpus
	}

	if err := vorbis.Decode(ctx, s, vorbis.Unbounded, c, opts); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if !errors.Is(err, ErrBadPage) {
			return nil, fmt.Errorf("decode comment header: %w", err)
		}
		md.Warn("ogg", r.Pos(), "comment header: %v", err)
	}

	if opts.DurationScan && !c.Found(types.FieldLength) {
		if err := readDuration(src, s.Info(), c); err != nil {
			opts.Logger.Debug("ogg: no duration", "path", src.Name, "error", err)
		}
	}
	return md, nil
}

// readDuration takes the granule position of the last page of the stream
// and converts it to milliseconds. Opus granules count 48 kHz samples
// including the pre-skip.
func readDuration(src types.Source, info StreamInfo, c *types.Collector) error {
	if info.SampleRate <= 0 {
		return errors.New("sample rate unknown")
	}
	granule, err := lastGranule(src, info.Serial)
	if err != nil {
		return err
	}
	samples := granule - int64(info.PreSkip)
	if samples <= 0 {
		return fmt.Errorf("granule %d before pre-skip %d", granule, info.PreSkip)
	}
	ms := samples * 1000 / int64(info.SampleRate)
	c.SetNumber(types.FieldLength, ms)

	md := c.Metadata()
	if md.Audio.Bitrate == 0 && ms > 0 {
		md.Audio.Bitrate = int(src.Size * 8 * 1000 / ms)
	}
	return nil
}

// lastGranule searches the tail of the file backwards for the last page of
// the given stream that carries a granule position.
func lastGranule(src types.Source, serial uint32) (int64, error) {
	_, buf, err := binutil.NewSafeReader(src.R, src.Size, src.Name).Tail(tailWindow, "last Ogg pages")
	if err != nil {
		return 0, err
	}

	for i := bytes.LastIndex(buf, []byte("OggS")); i >= 0; i = bytes.LastIndex(buf[:i], []byte("OggS")) {
		if i+pageHeaderSize > len(buf) || buf[i+4] != 0 {
			continue
		}
		pageSerial := binary.LittleEndian.Uint32(buf[i+14:])
		if pageSerial != serial {
			continue
		}
		granule := binary.LittleEndian.Uint64(buf[i+6:])
		// -1 marks a page on which no packet ends
		if int64(granule) == -1 {
			continue
		}
		return int64(granule), nil
	}
	return 0, errors.New("could not find last Ogg page")
}
