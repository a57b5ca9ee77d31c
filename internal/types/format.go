package types

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/simonhull/metastream/internal/binary"
)

// Format represents the detected container family.
type Format int

const (
	// FormatUnknown represents an unknown or unsupported format.
	FormatUnknown Format = iota
	// FormatMP3 represents MPEG audio, usually behind an ID3v2 tag.
	FormatMP3
	// FormatAAC represents raw ADTS AAC streams.
	FormatAAC
	// FormatWAV represents RIFF/WAVE files.
	FormatWAV
	// FormatFLAC represents native FLAC files.
	FormatFLAC
	// FormatOgg represents Ogg Vorbis files.
	FormatOgg
	// FormatOpus represents Ogg Opus files.
	FormatOpus
)

var formatNames = [...]string{
	FormatUnknown: "Unknown",
	FormatMP3:     "MP3",
	FormatAAC:     "AAC",
	FormatWAV:     "WAV",
	FormatFLAC:    "FLAC",
	FormatOgg:     "Ogg Vorbis",
	FormatOpus:    "Opus",
}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return formatNames[FormatUnknown]
	}
	return formatNames[f]
}

// Extensions returns common file extensions for this format.
func (f Format) Extensions() []string {
	switch f {
	case FormatMP3:
		return []string{".mp3", ".mp2", ".mp1", ".mpga"}
	case FormatAAC:
		return []string{".aac", ".adts"}
	case FormatWAV:
		return []string{".wav", ".wave"}
	case FormatFLAC:
		return []string{".flac"}
	case FormatOgg:
		return []string{".ogg", ".oga"}
	case FormatOpus:
		return []string{".opus"}
	default:
		return nil
	}
}

// FormatForExtension maps a file name to the format its extension implies.
func FormatForExtension(name string) Format {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return FormatUnknown
	}
	for f := FormatMP3; f <= FormatOpus; f++ {
		for _, e := range f.Extensions() {
			if e == ext {
				return f
			}
		}
	}
	return FormatUnknown
}

// SupportedExtension reports whether name has an extension any extractor
// accepts.
func SupportedExtension(name string) bool {
	return FormatForExtension(name) != FormatUnknown
}

// DetectFormat determines the container family by examining magic bytes.
//
// Sources whose leading bytes match nothing fall back to the extension. A
// source that matches neither is reported as FormatUnknown without error;
// callers may still try the ID3v1 trailer on it.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	if size < 4 {
		return FormatUnknown, &UnsupportedFormatError{
			Path:   path,
			Reason: "file too small",
		}
	}

	sr := binary.NewSafeReader(r, size, path)

	magic := make([]byte, 4)
	if err := sr.ReadAt(magic, 0, "file magic bytes"); err != nil {
		return FormatUnknown, &UnsupportedFormatError{
			Path:   path,
			Reason: "failed to read file header",
		}
	}

	switch {
	case string(magic) == "fLaC":
		return FormatFLAC, nil
	case string(magic[:3]) == "ID3":
		if f := FormatForExtension(path); f == FormatAAC || f == FormatWAV {
			return f, nil
		}
		return FormatMP3, nil
	case string(magic) == "RIFF":
		return FormatWAV, nil
	case string(magic) == "OggS":
		return detectOggCodec(sr, size), nil
	case magic[0] == 0xFF && magic[1]&0xF6 == 0xF0:
		// 12-bit sync with layer bits 00 is an ADTS header
		return FormatAAC, nil
	case magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	return FormatForExtension(path), nil
}

// detectOggCodec peeks into the first page to tell Opus from Vorbis.
func detectOggCodec(sr *binary.SafeReader, size int64) Format {
	// 27 header bytes + 1 lacing byte + 8 codec magic bytes
	if size < 36 {
		return FormatOgg
	}
	segCount, err := sr.Byte(26, "segment count")
	if err != nil {
		return FormatOgg
	}
	packetOffset := int64(27 + int(segCount))
	codecMagic := make([]byte, 8)
	if err := sr.ReadAt(codecMagic, packetOffset, "codec magic"); err != nil {
		return FormatOgg
	}
	if string(codecMagic) == "OpusHead" {
		return FormatOpus
	}
	return FormatOgg
}
