// Package registry maps formats to the extractor that handles them.
package registry

import (
	"context"
	"slices"

	"github.com/simonhull/metastream/internal/types"
)

// Extractor is implemented by every container extractor.
type Extractor interface {
	// Extract reads metadata from src. It returns a nil record only
	// together with a non-nil error. opts has already been normalized.
	Extract(ctx context.Context, src types.Source, opts *types.ExtractOptions) (*types.Metadata, error)
}

// extractors maps formats to their extractor.
var extractors = make(map[types.Format]Extractor)

// Register registers an extractor for a format.
// This is called by format packages during initialization (init functions).
func Register(format types.Format, e Extractor) {
	extractors[format] = e
}

// Get returns the extractor for a given format.
// Returns nil if no extractor is registered for the format.
func Get(format types.Format) Extractor {
	return extractors[format]
}

// Formats lists the registered formats in ascending order.
func Formats() []types.Format {
	out := make([]types.Format, 0, len(extractors))
	for f := range extractors {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}
