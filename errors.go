package metastream

import (
	"github.com/simonhull/metastream/internal/types"
)

// OutOfBoundsError reports a read past the end of the source.
type OutOfBoundsError = types.OutOfBoundsError

// UnsupportedFormatError reports a source no extractor accepts.
type UnsupportedFormatError = types.UnsupportedFormatError

// CorruptedFileError reports structurally broken container data.
type CorruptedFileError = types.CorruptedFileError

// Warning is a non-fatal issue recorded in Metadata.Warnings.
type Warning = types.Warning

// ErrNoMetadata is returned when a file was readable but held nothing
// recognizable: no tag and no audio stream.
var ErrNoMetadata = types.ErrNoMetadata
