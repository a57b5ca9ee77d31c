package id3

import (
	"encoding/binary"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/types"
)

const (
	// scanWindow bounds how far past the tag the frame sync search looks.
	scanWindow = 64 * 1024

	// syncFrames is how many back-to-back frame headers a sync candidate
	// needs before it is taken for audio.
	syncFrames = 3
)

// Bitrate tables in kbps, indexed by the 4-bit bitrate index.
var (
	bitratesV1L1 = [16]int{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}
	bitratesV1L2 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0}
	bitratesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	bitratesV2L1 = [16]int{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}
	bitratesV2L3 = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
)

// Sample rates in Hz per MPEG version, indexed by the 2-bit rate index.
var (
	sampleRatesV1  = [3]int{44100, 48000, 32000}
	sampleRatesV2  = [3]int{22050, 24000, 16000}
	sampleRatesV25 = [3]int{11025, 12000, 8000}
)

var adtsSampleRates = [...]int{96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350}

// frameHeader is a decoded MPEG audio frame header.
type frameHeader struct {
	version    int // 1, 2 or 25 for MPEG 2.5
	layer      int // 1, 2 or 3
	bitrate    int // bps
	sampleRate int
	channels   int
	padding    int
}

// size returns the frame length in bytes, header included.
func (h frameHeader) size() int {
	switch {
	case h.layer == 1:
		return (12*h.bitrate/h.sampleRate + h.padding) * 4
	case h.layer == 3 && h.version != 1:
		return 72*h.bitrate/h.sampleRate + h.padding
	default:
		return 144*h.bitrate/h.sampleRate + h.padding
	}
}

// follows reports whether next can continue a stream that started with h.
func (h frameHeader) follows(next frameHeader) bool {
	return next.version == h.version && next.layer == h.layer && next.sampleRate == h.sampleRate
}

// samplesPerFrame returns the number of PCM samples one frame decodes to.
func (h frameHeader) samplesPerFrame() int {
	switch {
	case h.layer == 1:
		return 384
	case h.layer == 3 && h.version != 1:
		return 576
	default:
		return 1152
	}
}

// xingOffset returns where a Xing/Info header would sit, relative to the
// frame start: the 4-byte header plus the side information.
func (h frameHeader) xingOffset() int {
	if h.version == 1 {
		if h.channels == 1 {
			return 4 + 17
		}
		return 4 + 32
	}
	if h.channels == 1 {
		return 4 + 9
	}
	return 4 + 17
}

// parseFrameHeader decodes an MPEG audio frame header, rejecting reserved
// and free-format values.
func parseFrameHeader(header uint32) (frameHeader, bool) {
	if header&0xFFE00000 != 0xFFE00000 {
		return frameHeader{}, false
	}
	var h frameHeader
	switch (header >> 19) & 0x3 {
	case 0:
		h.version = 25
	case 2:
		h.version = 2
	case 3:
		h.version = 1
	default:
		return frameHeader{}, false
	}
	switch (header >> 17) & 0x3 {
	case 1:
		h.layer = 3
	case 2:
		h.layer = 2
	case 3:
		h.layer = 1
	default:
		return frameHeader{}, false
	}

	bitrateIdx := (header >> 12) & 0xF
	rateIdx := (header >> 10) & 0x3
	if bitrateIdx == 0 || bitrateIdx == 15 || rateIdx == 3 {
		return frameHeader{}, false
	}

	var table [16]int
	switch {
	case h.version == 1 && h.layer == 1:
		table = bitratesV1L1
	case h.version == 1 && h.layer == 2:
		table = bitratesV1L2
	case h.version == 1:
		table = bitratesV1L3
	case h.layer == 1:
		table = bitratesV2L1
	default:
		table = bitratesV2L3
	}
	h.bitrate = table[bitrateIdx] * 1000

	switch h.version {
	case 1:
		h.sampleRate = sampleRatesV1[rateIdx]
	case 2:
		h.sampleRate = sampleRatesV2[rateIdx]
	default:
		h.sampleRate = sampleRatesV25[rateIdx]
	}

	h.padding = int(header>>9) & 0x1
	if (header>>6)&0x3 == 3 {
		h.channels = 1
	} else {
		h.channels = 2
	}
	return h, true
}

// scanAudio looks for the first audio frame in [start, end) and records
// the stream properties. When c has no length yet, the duration is taken
// from a Xing/Info or VBRI frame count, or estimated from the bitrate.
// It reports whether a frame was found.
//
// A sync word only counts when syncFrames headers follow each other at
// the offsets their lengths give. With anywhere false the stream must
// start exactly at start.
func scanAudio(src types.Source, start, end int64, anywhere bool, c *types.Collector) bool {
	if start < 0 || end-start < 4 {
		return false
	}
	sr := binutil.NewSafeReader(src.R, src.Size, src.Name)
	buf, err := sr.Window(start, min(end-start, scanWindow), "audio frame search")
	if err != nil {
		return false
	}

	last := len(buf) - 4
	if !anywhere {
		last = 0
	}
	for i := 0; i <= last; i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		audioBytes := end - start - int64(i)
		word := binary.BigEndian.Uint32(buf[i:])
		if word&0x00060000 == 0 && word&0xFFF00000 == 0xFFF00000 {
			if scanADTS(buf[i:], audioBytes, i == 0, c) {
				return true
			}
			continue
		}
		h, ok := parseFrameHeader(word)
		if !ok || !mpegChain(buf[i:], h, audioBytes, i == 0) {
			continue
		}
		recordMPEG(h, buf[i:], audioBytes, c)
		return true
	}
	return false
}

// mpegChain checks that frame headers follow h back to back. A stream
// too short to hold syncFrames frames is accepted only when it begins at
// the start of the audio.
func mpegChain(buf []byte, h frameHeader, audioBytes int64, atStart bool) bool {
	pos, cur := 0, h
	for n := 1; n < syncFrames; n++ {
		pos += cur.size()
		if int64(pos) >= audioBytes {
			return atStart
		}
		if pos+4 > len(buf) {
			return false
		}
		next, ok := parseFrameHeader(binary.BigEndian.Uint32(buf[pos:]))
		if !ok || !h.follows(next) {
			return false
		}
		cur = next
	}
	return true
}

func recordMPEG(h frameHeader, frame []byte, audioBytes int64, c *types.Collector) {
	audio := &c.Metadata().Audio
	audio.Codec = mpegCodecName(h)
	audio.SampleRate = h.sampleRate
	audio.Channels = h.channels
	audio.Bitrate = h.bitrate

	if frames, ok := vbrFrameCount(h, frame); ok {
		audio.VBR = true
		if frames > 0 {
			ms := int64(frames) * int64(h.samplesPerFrame()) * 1000 / int64(h.sampleRate)
			c.SetNumber(types.FieldLength, ms)
			if ms > 0 {
				audio.Bitrate = int(audioBytes * 8 * 1000 / ms)
			}
		}
		return
	}
	c.SetNumber(types.FieldLength, audioBytes*8*1000/int64(h.bitrate))
}

// vbrFrameCount reads the frame count from a Xing/Info or VBRI header in
// the first frame. Info headers mark CBR streams, so they report ok=false
// but still carry a usable count.
func vbrFrameCount(h frameHeader, frame []byte) (uint32, bool) {
	if off := h.xingOffset(); off+12 <= len(frame) {
		tag := string(frame[off : off+4])
		if tag == "Xing" || tag == "Info" {
			flags := binary.BigEndian.Uint32(frame[off+4:])
			if flags&0x1 == 0 {
				return 0, tag == "Xing"
			}
			return binary.BigEndian.Uint32(frame[off+8:]), true
		}
	}
	// VBRI sits 32 bytes after the header regardless of mode.
	if off := 4 + 32; off+18 <= len(frame) && string(frame[off:off+4]) == "VBRI" {
		return binary.BigEndian.Uint32(frame[off+14:]), true
	}
	return 0, false
}

func mpegCodecName(h frameHeader) string {
	names := [...]string{1: "MP1", 2: "MP2", 3: "MP3"}
	return names[h.layer]
}

// scanADTS reads consecutive ADTS frames in buf and estimates the stream
// duration from their average length. Like MPEG, it needs syncFrames
// frames in a row unless the stream starts at the audio start and ends
// before that many fit.
func scanADTS(buf []byte, audioBytes int64, atStart bool, c *types.Collector) bool {
	if len(buf) < 7 {
		return false
	}
	rateIdx := int(buf[2]>>2) & 0xF
	if rateIdx >= len(adtsSampleRates) {
		return false
	}
	sampleRate := adtsSampleRates[rateIdx]
	channels := int(buf[2]&0x1)<<2 | int(buf[3]>>6)

	var frames, total int64
	off := 0
	for off+7 <= len(buf) {
		if buf[off] != 0xFF || buf[off+1]&0xF6 != 0xF0 || int(buf[off+2]>>2)&0xF != rateIdx {
			break
		}
		length := int(buf[off+3]&0x3)<<11 | int(buf[off+4])<<3 | int(buf[off+5]>>5)
		if length < 7 {
			break
		}
		frames++
		total += int64(length)
		off += length
	}
	if frames == 0 {
		return false
	}
	if frames < syncFrames && !(atStart && int64(off)+7 > audioBytes) {
		return false
	}

	audio := &c.Metadata().Audio
	audio.Codec = "AAC"
	audio.SampleRate = sampleRate
	audio.Channels = channels

	avg := total / frames
	est := audioBytes / avg
	ms := est * 1024 * 1000 / int64(sampleRate)
	c.SetNumber(types.FieldLength, ms)
	if ms > 0 {
		audio.Bitrate = int(audioBytes * 8 * 1000 / ms)
	}
	return true
}
