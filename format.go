package metastream

import (
	"io"

	"github.com/simonhull/metastream/internal/registry"
	"github.com/simonhull/metastream/internal/types"
)

// Format identifies a container family.
type Format = types.Format

const (
	FormatUnknown = types.FormatUnknown
	FormatMP3     = types.FormatMP3
	FormatAAC     = types.FormatAAC
	FormatWAV     = types.FormatWAV
	FormatFLAC    = types.FormatFLAC
	FormatOgg     = types.FormatOgg
	FormatOpus    = types.FormatOpus
)

// DetectFormat identifies the container from its leading bytes, falling
// back to the extension of path.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	return types.DetectFormat(r, size, path)
}

// SupportedExtension reports whether path has an extension of a format
// this package reads.
func SupportedExtension(path string) bool {
	return types.SupportedExtension(path)
}

// Formats lists the formats with a registered extractor.
func Formats() []Format {
	return registry.Formats()
}
