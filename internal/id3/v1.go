package id3

import (
	"bytes"

	"github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/text"
	"github.com/simonhull/metastream/internal/types"
)

// v1Size is the fixed length of an ID3v1 trailer.
const v1Size = 128

// readV1 reads the ID3v1 trailer and fills whatever fields c still lacks.
// It reports whether a trailer was present. Read failures count as "no
// trailer"; this pass never fails an extraction.
func readV1(src types.Source, c *types.Collector) bool {
	if src.Size < v1Size {
		return false
	}
	_, buf, err := binary.NewSafeReader(src.R, src.Size, src.Name).Tail(v1Size, "ID3v1 tag")
	if err != nil {
		return false
	}
	if string(buf[0:3]) != "TAG" {
		return false
	}

	c.SetText(types.FieldTitle, v1String(buf[3:33]))
	c.SetText(types.FieldArtist, v1String(buf[33:63]))
	c.SetText(types.FieldAlbum, v1String(buf[63:93]))
	c.SetNumber(types.FieldYear, int64(text.LeadingInt(v1String(buf[93:97]))))

	// ID3v1.1: a zero byte before the last comment byte marks it as the
	// track number.
	if buf[125] == 0 {
		c.SetNumber(types.FieldTrack, int64(buf[126]))
	}
	return true
}

// v1String decodes a fixed-width Latin-1 field, cut at the first NUL.
func v1String(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return text.Trim(text.Latin1(b))
}
