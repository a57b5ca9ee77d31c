package metastream

import (
	"github.com/simonhull/metastream/internal/types"
)

// Metadata is the record produced by one extraction.
type Metadata = types.Metadata

// AudioInfo holds technical stream properties.
type AudioInfo = types.AudioInfo

// Flags describes properties of the extracted stream.
type Flags = types.Flags

// FlagSeekable is set unless the container lacks a usable time index.
const FlagSeekable = types.FlagSeekable

// Buffers are scratch buffers an extraction may reuse.
type Buffers = types.Buffers
