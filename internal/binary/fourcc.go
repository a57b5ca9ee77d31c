package binary

import "encoding/binary"

// FourCC packs a four-character code into a big-endian uint32 so tag and
// chunk identifiers can be compared and used as map keys without
// allocating strings.
func FourCC(s string) uint32 {
	if len(s) != 4 {
		panic("binary: FourCC needs exactly four bytes: " + s)
	}
	return binary.BigEndian.Uint32([]byte(s))
}
