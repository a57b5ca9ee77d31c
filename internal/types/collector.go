package types

// Field identifies one tracked metadata field in a Collector's found set.
type Field uint8

const (
	FieldTitle Field = 1 << iota
	FieldArtist
	FieldAlbum
	FieldTrack
	FieldLength
	FieldYear
)

const (
	// AllFields is every field a tag pass can discover.
	AllFields = FieldTitle | FieldArtist | FieldAlbum | FieldTrack | FieldLength | FieldYear

	// TagFields are the fields a trailing ID3v1 tag can supply.
	TagFields = FieldTitle | FieldArtist | FieldAlbum | FieldTrack | FieldYear
)

// Collector assigns fields of a Metadata record with first-occurrence-wins
// semantics. Once a field's bit is set, later values for it are dropped.
//
// A later pass over a lower-priority tag reuses the same Collector so that
// it only fills gaps.
type Collector struct {
	md    *Metadata
	found Field
}

// NewCollector wraps md.
func NewCollector(md *Metadata) *Collector {
	return &Collector{md: md}
}

// Metadata returns the record being filled.
func (c *Collector) Metadata() *Metadata {
	return c.md
}

// Found reports whether f has already been set.
func (c *Collector) Found(f Field) bool {
	return c.found&f != 0
}

// Complete reports whether every field in mask has been set.
func (c *Collector) Complete(mask Field) bool {
	return c.found&mask == mask
}

// Mark sets f's bit without touching the record.
func (c *Collector) Mark(f Field) {
	c.found |= f
}

// SetText stores s in the text field f. Blank values are treated as absent
// and leave the bit clear. Returns true if the value was stored.
func (c *Collector) SetText(f Field, s string) bool {
	if s == "" || c.Found(f) {
		return false
	}
	switch f {
	case FieldTitle:
		c.md.Title = s
	case FieldArtist:
		c.md.Artist = s
	case FieldAlbum:
		c.md.Album = s
	default:
		return false
	}
	c.found |= f
	return true
}

// SetNumber stores n in the numeric field f. Only positive values are
// stored. For FieldLength, n is in milliseconds.
func (c *Collector) SetNumber(f Field, n int64) bool {
	if n <= 0 || c.Found(f) {
		return false
	}
	switch f {
	case FieldTrack:
		c.md.Track = int(n)
	case FieldYear:
		c.md.Year = int(n)
	case FieldLength:
		c.md.LengthMS = n
	default:
		return false
	}
	c.found |= f
	return true
}

// AppendArtist joins s onto the artist field with ", ". Used for formats
// where repeated artist entries accumulate instead of competing.
func (c *Collector) AppendArtist(s string) {
	if s == "" {
		return
	}
	if c.md.Artist == "" {
		c.md.Artist = s
	} else {
		c.md.Artist += ", " + s
	}
	c.found |= FieldArtist
}
