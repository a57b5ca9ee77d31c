package riff

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/types"
)

// Chunk is one top-level chunk header of a RIFF file.
type Chunk struct {
	ID     string
	Offset int64 // of the chunk header
	Length int64 // payload length as declared
}

// Chunks calls fn for every top-level chunk of a RIFF file, for dump
// tooling. A chunk that overflows the file is still reported; the walk
// ends after it.
func Chunks(ctx context.Context, src types.Source, fn func(Chunk) error) error {
	r := binary.NewChunkReader(src.R, src.Size, make([]byte, binary.MinBufferSize))
	if err := r.Fill(ctx, 12); err != nil {
		return fmt.Errorf("read RIFF header: %w", err)
	}
	magic, _ := r.Uint32BE()
	if magic != idRIFF {
		return &types.CorruptedFileError{Path: src.Name, Reason: "missing RIFF signature"}
	}
	r.Skip(8)

	for r.Pos()+8 <= r.Size() {
		offset := r.Pos()
		if err := r.Fill(ctx, 8); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		id, _ := r.Uint32BE()
		length, _ := r.Uint32LE()
		size := int64(length)
		if err := fn(Chunk{ID: fourCCString(id), Offset: offset, Length: size}); err != nil {
			return err
		}
		if r.Pos()+size > r.Size() {
			return nil
		}
		r.Skip(size + size&1)
	}
	return nil
}
