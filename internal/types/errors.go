package types

import (
	"errors"
	"fmt"
)

// ErrNoMetadata is returned when a source was readable but carried no
// recognizable tag structure at all.
var ErrNoMetadata = errors.New("no metadata found")

// OutOfBoundsError is returned when attempting to read beyond source bounds.
type OutOfBoundsError struct {
	Path   string
	What   string
	Offset int64
	Length int
	Size   int64
}

func (e *OutOfBoundsError) Error() string {
	if e.Offset >= e.Size {
		return fmt.Sprintf("%s: offset %d out of bounds (size: %d) while reading %s",
			e.Path, e.Offset, e.Size, e.What)
	}
	return fmt.Sprintf("%s: read of %d bytes at offset %d would exceed size %d while reading %s",
		e.Path, e.Length, e.Offset, e.Size, e.What)
}

// UnsupportedFormatError is returned when a source is not handled by the
// extractor it was handed to.
type UnsupportedFormatError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported format: %s", e.Path, e.Reason)
}

// CorruptedFileError is returned when container structure is invalid.
type CorruptedFileError struct {
	Path   string
	Reason string
	Offset int64
}

func (e *CorruptedFileError) Error() string {
	return fmt.Sprintf("%s: corrupted file at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// Warning represents a non-fatal issue encountered during extraction.
//
// Warnings mark single fields that could not be decoded, for example a
// malformed comment entry or an embedded picture with a broken length.
// Extraction continues past them.
type Warning struct {
	// Stage where the warning occurred
	Stage string // "id3v2", "id3v1", "riff", "flac", "vorbis", "ogg", "picture"

	// Warning message
	Message string

	// Source offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
