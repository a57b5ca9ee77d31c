package types

import (
	"fmt"
	"strings"
)

// AudioInfo holds the technical stream properties the framers come across
// while walking headers. Any field may be zero when the container does not
// expose it before the tag data.
type AudioInfo struct {
	Codec      string
	SampleRate int
	BitDepth   int
	Channels   int
	Bitrate    int
	Lossless   bool
	VBR        bool
}

// String returns a human-readable representation of the audio info.
// Example output: "FLAC 44.1kHz 16-bit stereo lossless".
func (a AudioInfo) String() string {
	parts := []string{a.Codec}

	if a.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1fkHz", float64(a.SampleRate)/1000))
	}
	if a.BitDepth > 0 {
		parts = append(parts, fmt.Sprintf("%d-bit", a.BitDepth))
	}
	parts = append(parts, channelDescription(a.Channels))

	if a.Lossless {
		parts = append(parts, "lossless")
	} else if a.Bitrate > 0 {
		quality := fmt.Sprintf("%dkbps", a.Bitrate/1000)
		if a.VBR {
			quality += " VBR"
		}
		parts = append(parts, quality)
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// channelDescription returns a human-readable channel description.
func channelDescription(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "mono"
	case 2:
		return "stereo"
	case 4:
		return "quad"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// IsHighRes returns true if the audio is high-resolution: a sample rate
// above 48kHz or a bit depth above 16.
func (a AudioInfo) IsHighRes() bool {
	return a.SampleRate > 48000 || a.BitDepth > 16
}
