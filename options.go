package metastream

import (
	"log/slog"

	"github.com/simonhull/metastream/internal/types"
)

// Option configures an extraction.
//
// Options use the functional options pattern:
//
//	md, err := metastream.Open(ctx, "song.flac",
//	    metastream.WithAlbumArt(true),
//	    metastream.WithLogger(logger),
//	)
type Option func(*options)

type options struct {
	extract     types.ExtractOptions
	concurrency int
}

func newOptions(opts []Option) *options {
	o := &options{extract: types.ExtractOptions{DurationScan: true}}
	for _, opt := range opts {
		opt(o)
	}
	o.extract.Normalize()
	return o
}

// extractOptions returns a copy so one Option set can serve many calls.
func (o *options) extractOptions() *types.ExtractOptions {
	eo := o.extract
	return &eo
}

// WithAlbumArt asks for the front cover picture to be copied into
// Metadata.AlbumArt. Off by default; pictures are skipped unread.
func WithAlbumArt(enabled bool) Option {
	return func(o *options) {
		o.extract.AlbumArt = enabled
	}
}

// WithBuffers supplies caller-owned scratch buffers. Buffers must not be
// shared between concurrent extractions.
func WithBuffers(b *Buffers) Option {
	return func(o *options) {
		o.extract.Buffers = b
	}
}

// WithBufferSize sets the lookahead buffer size in bytes. Values below
// 512 fall back to the default of 16 KiB.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.extract.BufferSize = n
	}
}

// WithLogger routes debug output to l. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.extract.Logger = l
	}
}

// WithDurationScan controls whether the duration is derived from the audio
// stream (MPEG frame headers, RIFF data length, Ogg granule positions)
// when no tag carries it. On by default.
func WithDurationScan(enabled bool) Option {
	return func(o *options) {
		o.extract.DurationScan = enabled
	}
}

// WithConcurrency bounds the number of files ExtractMany works on at
// once. Zero or less means runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}
