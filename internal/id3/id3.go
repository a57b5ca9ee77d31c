// Package id3 extracts metadata from the MP3, AAC and WAV container family:
// ID3v2 tags at the head of the file, ID3v1 trailers, and RIFF/WAVE files
// whose INFO list or trailing id3 chunk carries the tags.
package id3

import (
	"context"
	"errors"
	"io"

	"github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/registry"
	"github.com/simonhull/metastream/internal/riff"
	"github.com/simonhull/metastream/internal/types"
)

func init() {
	e := &extractor{}
	registry.Register(types.FormatMP3, e)
	registry.Register(types.FormatAAC, e)
	registry.Register(types.FormatWAV, e)
}

// extractor implements registry.Extractor.
type extractor struct{}

func (e *extractor) Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	return Extract(ctx, src, opts)
}

// Extract reads tags from src.
//
// The first bytes pick the path: "ID3" walks an ID3v2 tag, "RIFF" walks a
// WAVE file (and the ID3v2 tag it may hand off to), anything else goes
// straight to the ID3v1 trailer. ID3v1 then fills whatever title, artist,
// album, track or year is still missing.
//
// If nothing at all is found, Extract returns types.ErrNoMetadata. A
// structurally broken RIFF file yields a *types.CorruptedFileError.
func Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error) {
	opts = opts.Normalize()

	// an unrecognised extension gets the ID3v1 last resort as MP3
	format := types.FormatMP3
	switch ext := types.FormatForExtension(src.Name); ext {
	case types.FormatUnknown:
	case types.FormatMP3, types.FormatAAC, types.FormatWAV:
		format = ext
	default:
		return nil, &types.UnsupportedFormatError{Path: src.Name, Reason: "not an ID3 or RIFF container"}
	}

	md := types.NewMetadata(format)
	md.FileName = src.Name
	md.FileSize = src.Size
	c := types.NewCollector(md)

	r := binary.NewChunkReader(src.R, src.Size, opts.Buffers.Lookahead)
	if err := r.Fill(ctx, 4); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	magic, _ := r.Peek(min(4, r.Buffered()))

	w := &v2Walker{r: r, c: c, opts: opts, log: opts.Logger, path: src.Name}
	audioStart := int64(-1)
	tagged := false

	switch {
	case len(magic) >= 3 && string(magic[:3]) == "ID3":
		r.Skip(3)
		tagEnd, err := w.readV2(ctx)
		if err != nil {
			return nil, err
		}
		audioStart, tagged = tagEnd, true
		if err := skipFooter(src, &audioStart); err != nil {
			opts.Logger.Debug("id3: footer check failed", "error", err)
		}
	case len(magic) == 4 && string(magic) == "RIFF":
		md.Format = types.FormatWAV
		res, err := riff.Walk(ctx, r, c, opts, src.Name)
		if err != nil {
			return nil, err
		}
		if res.ID3Follows {
			if _, err := w.readV2(ctx); err != nil {
				return nil, err
			}
		}
	default:
		audioStart = 0
	}

	hasV1 := false
	if !c.Complete(types.TagFields) {
		hasV1 = readV1(src, c)
	}

	if audioStart >= 0 && opts.DurationScan && !c.Found(types.FieldLength) {
		end := src.Size
		if hasV1 || hasV1Trailer(src) {
			end -= v1Size
		}
		// without a tag, only audio starting at offset 0 counts
		if scanAudio(src, audioStart, end, tagged || hasV1, c) && md.Format == types.FormatMP3 && md.Audio.Codec == "AAC" {
			md.Format = types.FormatAAC
		}
	}

	if md.Empty() && md.Audio.Codec == "" {
		return nil, types.ErrNoMetadata
	}
	return md, nil
}

// skipFooter moves start past a second ID3v2 tag directly after the first;
// some taggers write one rather than rewriting the file.
func skipFooter(src types.Source, start *int64) error {
	if *start+10 > src.Size {
		return nil
	}
	sr := binary.NewSafeReader(src.R, src.Size, src.Name)
	hdr := make([]byte, 10)
	if err := sr.ReadAt(hdr, *start, "ID3v2 header"); err != nil {
		return err
	}
	if string(hdr[:3]) == "ID3" {
		*start += 10 + decodeSize(hdr[6:10])
	}
	return nil
}

// hasV1Trailer reports whether the file ends in an ID3v1 trailer.
func hasV1Trailer(src types.Source) bool {
	if src.Size < v1Size {
		return false
	}
	sig := make([]byte, 3)
	sr := binary.NewSafeReader(src.R, src.Size, src.Name)
	if err := sr.ReadAt(sig, src.Size-v1Size, "ID3v1 signature"); err != nil {
		return false
	}
	return string(sig) == "TAG"
}
