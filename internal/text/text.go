// Package text decodes tag payloads into Go strings: ID3v2 encoding-byte
// dispatch, Latin-1, UTF-16 with and without a byte-order mark, RIFF INFO
// strings and Vorbis comment normalization.
package text

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// ID3v2 text encodings, the first byte of every text frame.
const (
	EncodingLatin1  byte = 0
	EncodingUTF16   byte = 1 // with BOM
	EncodingUTF16BE byte = 2
	EncodingUTF8    byte = 3
)

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
)

// isTrimmed matches NUL, TAB, LF, VT, FF, CR, SPACE, NEL and NBSP.
func isTrimmed(r rune) bool {
	switch r {
	case 0x00, '\t', '\n', '\v', '\f', '\r', ' ', 0x85, 0xA0:
		return true
	}
	return false
}

// Trim removes padding and control characters from both ends of s.
func Trim(s string) string {
	return strings.TrimFunc(s, isTrimmed)
}

// DecodeID3 decodes an ID3v2 text payload whose first byte selects the
// encoding. It returns ok=false when the encoding byte is unknown. A
// payload that trims to nothing decodes to "".
func DecodeID3(payload []byte) (s string, ok bool) {
	if len(payload) == 0 {
		return "", true
	}
	enc, body := payload[0], payload[1:]

	switch enc {
	case EncodingLatin1:
		s = Latin1(body)
	case EncodingUTF16:
		s = decodeUTF16(body, false)
	case EncodingUTF16BE:
		s = decodeUTF16(body, true)
	case EncodingUTF8:
		s = strings.ToValidUTF8(string(body), "�")
	default:
		return "", false
	}
	return Trim(s), true
}

// Latin1 decodes ISO-8859-1 bytes.
func Latin1(b []byte) string {
	return decode(charmap.ISO8859_1, b)
}

// decodeUTF16 decodes a UTF-16 payload. A leading BOM picks the byte order
// and is dropped. Without one, bigEndian decides.
func decodeUTF16(b []byte, bigEndian bool) string {
	if len(b)%2 == 1 {
		// the last code unit lost its zero high byte
		b = append(b[:len(b):len(b)], 0)
	}
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFF && b[1] == 0xFE:
			bigEndian = false
			b = b[2:]
		case b[0] == 0xFE && b[1] == 0xFF:
			bigEndian = true
			b = b[2:]
		}
	}
	if bigEndian {
		return decode(utf16BE, b)
	}
	return decode(utf16LE, b)
}

func decode(enc encoding.Encoding, b []byte) string {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(out)
}

// RIFFInfo decodes a RIFF INFO string. Writers disagree on the charset, so
// valid UTF-8 is taken as is and anything else is read as Latin-1.
func RIFFInfo(b []byte) string {
	if utf8.Valid(b) {
		return Trim(string(b))
	}
	return Trim(Latin1(b))
}

// Comment normalizes a Vorbis comment value to NFC and trims it.
func Comment(b []byte) string {
	s := strings.ToValidUTF8(string(b), "�")
	return Trim(norm.NFC.String(s))
}

// LeadingInt parses the decimal digits at the start of s, after trimming.
// "3/12" yields 3 and "2004-05-01" yields 2004. It returns 0 when s does
// not start with a digit.
func LeadingInt(s string) int {
	s = Trim(s)
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		if n > (1<<31-1)/10 {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
