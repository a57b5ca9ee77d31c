package id3

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/types"
)

// Frame is one ID3v2 frame header.
type Frame struct {
	ID     string
	Offset int64 // of the frame header
	Size   int64
}

// Frames calls fn for every frame header of the ID3v2 tag at the start of
// src, for dump tooling. It returns the tag's major version.
func Frames(ctx context.Context, src types.Source, fn func(Frame) error) (byte, error) {
	r := binutil.NewChunkReader(src.R, src.Size, make([]byte, binutil.MinBufferSize))
	if err := r.Fill(ctx, 10); err != nil {
		return 0, fmt.Errorf("read ID3v2 header: %w", err)
	}
	raw, _ := r.Next(10)
	if string(raw[0:3]) != "ID3" {
		return 0, &types.CorruptedFileError{Path: src.Name, Reason: "missing ID3v2 signature"}
	}
	major := raw[3]
	tagEnd := r.Pos() + decodeSize(raw[6:10])
	if major < 3 {
		return major, nil
	}

	w := &v2Walker{r: r, log: slog.New(slog.DiscardHandler)}
	if raw[5]&headerFlagExtended != 0 {
		if err := w.skipExtendedHeader(ctx, major); err != nil {
			return major, err
		}
	}
	for r.Pos()+10 <= tagEnd {
		offset := r.Pos()
		if err := r.Fill(ctx, 10); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return major, nil
			}
			return major, err
		}
		fh, _ := r.Next(10)
		if binary.BigEndian.Uint32(fh[0:4]) == 0 || fh[0] == 0 {
			return major, nil
		}
		size := w.frameSize(major, fh[4:8], tagEnd)
		if err := fn(Frame{ID: string(fh[0:4]), Offset: offset, Size: size}); err != nil {
			return major, err
		}
		if size < 0 || r.Pos()+size > tagEnd {
			return major, nil
		}
		r.Skip(size)
	}
	return major, nil
}
