package vorbis

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/simonhull/metastream/internal/types"
)

// Picture is a FLAC picture structure, as stored in a PICTURE metadata
// block or base64-encoded in a METADATA_BLOCK_PICTURE comment.
type Picture struct {
	Type        types.PictureType
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	Depth       uint32
	Colors      uint32

	// Data aliases the buffer passed to ParsePicture.
	Data []byte
}

// ErrPictureTruncated is returned when a length field points past the end
// of the picture structure.
var ErrPictureTruncated = errors.New("picture structure truncated")

// PictureType reads only the leading picture type of b.
func PictureType(b []byte) (types.PictureType, bool) {
	if len(b) < 4 {
		return 0, false
	}
	return types.PictureType(binary.BigEndian.Uint32(b)), true
}

// ParsePicture walks a FLAC picture structure:
//
//	type, MIME length, MIME, description length, description,
//	width, height, depth, colors used, data length, data
//
// All integers are 32-bit big-endian.
func ParsePicture(b []byte) (Picture, error) {
	var p Picture
	off := 0
	u32 := func(what string) (uint32, error) {
		if off+4 > len(b) {
			return 0, fmt.Errorf("%w: %s at %d", ErrPictureTruncated, what, off)
		}
		v := binary.BigEndian.Uint32(b[off:])
		off += 4
		return v, nil
	}
	str := func(what string) ([]byte, error) {
		n, err := u32(what + " length")
		if err != nil {
			return nil, err
		}
		if uint64(off)+uint64(n) > uint64(len(b)) {
			return nil, fmt.Errorf("%w: %s length %d", ErrPictureTruncated, what, n)
		}
		s := b[off : off+int(n)]
		off += int(n)
		return s, nil
	}

	typ, err := u32("picture type")
	if err != nil {
		return p, err
	}
	p.Type = types.PictureType(typ)

	mime, err := str("MIME type")
	if err != nil {
		return p, err
	}
	p.MIME = string(mime)

	desc, err := str("description")
	if err != nil {
		return p, err
	}
	p.Description = string(desc)

	// width, height, depth, colors: 16 fixed bytes
	if off+16 > len(b) {
		return p, fmt.Errorf("%w: dimensions at %d", ErrPictureTruncated, off)
	}
	p.Width = binary.BigEndian.Uint32(b[off:])
	p.Height = binary.BigEndian.Uint32(b[off+4:])
	p.Depth = binary.BigEndian.Uint32(b[off+8:])
	p.Colors = binary.BigEndian.Uint32(b[off+12:])
	off += 16

	p.Data, err = str("picture data")
	if err != nil {
		return p, err
	}
	return p, nil
}

// b64 maps the standard base64 alphabet to 6-bit values. Other bytes map
// to 0xFF.
var b64 = func() (t [256]byte) {
	for i := range t {
		t[i] = 0xFF
	}
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = byte(i)
	}
	return t
}()

// decodeBase64 decodes standard base64 in place and returns the decoded
// length. Output byte n is written only after input byte 4n/3 has been
// read, so the write cursor never overtakes the read cursor.
//
// Decoding stops at the first '=' pad. Line breaks and spaces are skipped.
// Trailing bits that do not fill a whole byte are dropped, which is the
// correct treatment for both "=" and "==" padding and for unpadded input.
func decodeBase64(b []byte) (int, error) {
	var acc uint32
	bits := 0
	n := 0
	for i, ch := range b {
		if ch == '=' {
			break
		}
		v := b64[ch]
		if v == 0xFF {
			switch ch {
			case '\r', '\n', ' ', '\t':
				continue
			}
			return n, fmt.Errorf("invalid base64 byte 0x%02x at %d", ch, i)
		}
		acc = acc<<6 | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			b[n] = byte(acc >> bits)
			n++
			acc &= 1<<bits - 1
		}
	}
	return n, nil
}
