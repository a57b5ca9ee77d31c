// Package types provides the core data structures shared by every
// container extractor: the Metadata record, the first-wins field
// collector, extraction options, errors and format detection.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Flags is a bit set describing properties of the extracted stream.
type Flags uint32

const (
	// FlagSeekable is set when the stream can be seeked by time. It is on by
	// default and cleared for containers without a usable time index.
	FlagSeekable Flags = 1 << iota
)

// Has reports whether every bit of flag is set.
func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

// Metadata is the record produced by one extraction call.
//
// String fields are empty when absent. Track and Year are zero when unknown.
// LengthMS is zero when the duration could not be determined.
type Metadata struct {
	// URL is left empty by the extractors. Callers that know where the
	// source came from fill it in.
	URL string

	Flags  Flags
	Format Format

	Title  string
	Artist string
	Album  string
	Track  int
	Year   int

	LengthMS int64

	// AlbumArt holds the first front-cover picture found. It is always an
	// owned copy and never aliases a scratch buffer.
	AlbumArt     []byte
	AlbumArtMIME string

	Audio AudioInfo

	FileName string
	FileSize int64

	Warnings []Warning
}

// NewMetadata returns an empty record with the default flags.
func NewMetadata(format Format) *Metadata {
	return &Metadata{Flags: FlagSeekable, Format: format}
}

// Duration returns LengthMS as a time.Duration.
func (m *Metadata) Duration() time.Duration {
	return time.Duration(m.LengthMS) * time.Millisecond
}

// HasAlbumArt reports whether a picture was extracted.
func (m *Metadata) HasAlbumArt() bool {
	return len(m.AlbumArt) > 0
}

// Empty reports whether no tag field was found.
func (m *Metadata) Empty() bool {
	return m.Title == "" && m.Artist == "" && m.Album == "" &&
		m.Track == 0 && m.Year == 0 && m.LengthMS == 0 && len(m.AlbumArt) == 0
}

// Warn records a non-fatal issue.
func (m *Metadata) Warn(stage string, offset int64, format string, args ...any) {
	m.Warnings = append(m.Warnings, Warning{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	})
}

// String returns "Artist - Title" with whatever parts are known.
func (m *Metadata) String() string {
	parts := make([]string, 0, 2)
	if m.Artist != "" {
		parts = append(parts, m.Artist)
	}
	if m.Title != "" {
		parts = append(parts, m.Title)
	}
	if len(parts) == 0 {
		return m.FileName
	}
	return strings.Join(parts, " - ")
}
