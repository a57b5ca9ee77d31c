package types

import (
	"io"
	"log/slog"
)

// DefaultBufferSize is the lookahead window used when the caller does not
// supply one.
const DefaultBufferSize = 16 * 1024

// Source is a byte-addressable backing store for one extraction.
type Source struct {
	R    io.ReaderAt
	Size int64
	// Name is the file name or path, used for extension checks and error
	// messages. It may be empty.
	Name string
}

// Buffers are reusable scratch slices. A caller extracting many files one
// after another may hand the same Buffers to each call. They must never be
// shared by two extractions running at the same time.
type Buffers struct {
	// Lookahead backs the chunked reader.
	Lookahead []byte
	// Temp holds frame and comment payloads. It grows on demand and the
	// grown slice is stored back for the next call.
	Temp []byte
}

// TempN returns a scratch slice of length n, growing Temp if needed.
func (b *Buffers) TempN(n int) []byte {
	if cap(b.Temp) < n {
		b.Temp = make([]byte, n)
	}
	return b.Temp[:n]
}

// ExtractOptions carries per-call settings shared by every extractor.
type ExtractOptions struct {
	Logger  *slog.Logger
	Buffers *Buffers

	// BufferSize is the lookahead window when Buffers.Lookahead is empty.
	BufferSize int

	// AlbumArt enables decoding of embedded front-cover pictures.
	AlbumArt bool

	// DurationScan allows extra bounded reads to estimate a duration the
	// tags do not carry (MPEG frame headers, the last Ogg granule).
	DurationScan bool
}

// Normalize fills unset fields with defaults and returns o. A nil receiver
// yields a fresh default set.
func (o *ExtractOptions) Normalize() *ExtractOptions {
	if o == nil {
		o = &ExtractOptions{DurationScan: true}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Buffers == nil {
		o.Buffers = &Buffers{}
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if len(o.Buffers.Lookahead) < o.BufferSize {
		o.Buffers.Lookahead = make([]byte, o.BufferSize)
	}
	return o
}
