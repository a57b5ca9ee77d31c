// Package dump prints the container structure of an audio file: FLAC
// metadata blocks, Ogg pages, RIFF chunks or ID3v2 frames. It is useful to
// confirm what the extractors are able to see.
package dump

import (
	"context"
	"fmt"
	"io"

	"github.com/simonhull/metastream/internal/flac"
	"github.com/simonhull/metastream/internal/id3"
	"github.com/simonhull/metastream/internal/ogg"
	"github.com/simonhull/metastream/internal/riff"
	"github.com/simonhull/metastream/internal/types"
)

// Write detects the container of src and prints its structure to w.
func Write(ctx context.Context, w io.Writer, src types.Source) error {
	format, err := types.DetectFormat(src.R, src.Size, src.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s, %d bytes\n", src.Name, format, src.Size)

	switch format {
	case types.FormatFLAC:
		return flacBlocks(ctx, w, src)
	case types.FormatOgg, types.FormatOpus:
		return oggPages(ctx, w, src)
	case types.FormatWAV:
		return riffChunks(ctx, w, src)
	case types.FormatMP3, types.FormatAAC:
		return id3Frames(ctx, w, src)
	}
	return &types.UnsupportedFormatError{Path: src.Name, Reason: "no structure to dump"}
}

func flacBlocks(ctx context.Context, w io.Writer, src types.Source) error {
	blocks, err := flac.Blocks(ctx, src)
	for _, b := range blocks {
		last := ""
		if b.Last {
			last = " last"
		}
		fmt.Fprintf(w, "  %-14s (size: %d, offset: %d)%s\n", b.Name, b.Length, b.Offset, last)
	}
	return err
}

func oggPages(ctx context.Context, w io.Writer, src types.Source) error {
	return ogg.Pages(ctx, src, func(h ogg.PageHeader) error {
		var flags []byte
		for _, f := range []struct {
			set bool
			c   byte
		}{{h.Continued(), 'c'}, {h.BOS(), 'b'}, {h.EOS(), 'e'}} {
			if f.set {
				flags = append(flags, f.c)
			}
		}
		_, err := fmt.Fprintf(w, "  page %-5d serial %08x granule %-12d (size: %d, offset: %d) %s\n",
			h.Sequence, h.Serial, h.Granule, h.Length, h.Offset, flags)
		return err
	})
}

func riffChunks(ctx context.Context, w io.Writer, src types.Source) error {
	return riff.Chunks(ctx, src, func(c riff.Chunk) error {
		_, err := fmt.Fprintf(w, "  %q (size: %d, offset: %d)\n", c.ID, c.Length, c.Offset)
		return err
	})
}

func id3Frames(ctx context.Context, w io.Writer, src types.Source) error {
	var frames []id3.Frame
	major, err := id3.Frames(ctx, src, func(f id3.Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  ID3v2.%d\n", major)
	for _, f := range frames {
		fmt.Fprintf(w, "    %s (size: %d, offset: %d)\n", f.ID, f.Size, f.Offset)
	}
	return nil
}
