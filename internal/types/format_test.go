package types

import (
	"bytes"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		path string
		want Format
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22"), "a.flac", FormatFLAC},
		{"id3 mp3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), "a.mp3", FormatMP3},
		{"id3 aac", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"), "a.aac", FormatAAC},
		{"id3 no name", []byte("ID3\x03\x00\x00\x00\x00\x00\x00"), "", FormatMP3},
		{"riff", []byte("RIFF\x04\x00\x00\x00WAVE"), "a.wav", FormatWAV},
		{"mpeg sync", []byte{0xFF, 0xFB, 0x90, 0x64}, "a.bin", FormatMP3},
		{"adts sync", []byte{0xFF, 0xF1, 0x50, 0x80}, "a.bin", FormatAAC},
		{"vorbis", createMinimalOggPage("\x01vorbis"), "a.ogg", FormatOgg},
		{"opus", createMinimalOggPage("OpusHead"), "a.ogg", FormatOpus},
		{"unknown by extension", []byte("junkjunkjunk"), "song.mp3", FormatMP3},
		{"unknown", []byte("junkjunkjunk"), "notes.txt", FormatUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectFormat(bytes.NewReader(tc.data), int64(len(tc.data)), tc.path)
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("DetectFormat() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDetectFormat_TooSmall(t *testing.T) {
	data := []byte("abc")

	_, err := DetectFormat(bytes.NewReader(data), int64(len(data)), "test.bin")
	if err == nil {
		t.Error("DetectFormat() should return error for file too small")
	}
}

func TestFormatForExtension(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"a.MP3", FormatMP3},
		{"dir/b.mpga", FormatMP3},
		{"c.wave", FormatWAV},
		{"d.adts", FormatAAC},
		{"e.oga", FormatOgg},
		{"f.opus", FormatOpus},
		{"g.flac", FormatFLAC},
		{"h.m4a", FormatUnknown},
		{"noext", FormatUnknown},
	}

	for _, tc := range tests {
		if got := FormatForExtension(tc.name); got != tc.want {
			t.Errorf("FormatForExtension(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFormat_String(t *testing.T) {
	if got := FormatOgg.String(); got != "Ogg Vorbis" {
		t.Errorf("FormatOgg.String() = %q", got)
	}
	if got := Format(99).String(); got != "Unknown" {
		t.Errorf("Format(99).String() = %q", got)
	}
}

// createMinimalOggPage creates a minimal Ogg page with the given first packet content.
func createMinimalOggPage(packetContent string) []byte {
	header := make([]byte, 27)
	copy(header[0:4], "OggS")
	header[5] = 0x02 // BOS
	for i := 6; i < 14; i++ {
		header[i] = 0xFF
	}
	header[14] = 0x01
	header[26] = 1

	page := append(header, byte(len(packetContent)))
	page = append(page, packetContent...)
	// pad so the codec magic read never runs past the end
	return append(page, make([]byte, 16)...)
}
