// Package testaudio builds small but structurally valid audio files for
// tests. Tag writing goes through real tag libraries where one exists so
// fixtures are not shaped by the reader under test.
package testaudio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
)

// Tags are the fields written into a fixture. Zero values are omitted.
type Tags struct {
	Title  string
	Artist string
	Album  string
	Track  int
	Year   int

	// Cover is written as a front cover picture where the format allows.
	Cover     []byte
	CoverMIME string
}

// mpegFrameHeader is MPEG-1 Layer III, 128 kbps, 44.1 kHz, stereo, with
// no padding, so every frame is mpegFrameSize bytes.
const (
	mpegFrameHeader = 0xFFFB9000
	mpegFrameSize   = 144 * 128000 / 44100
)

// MP3 returns an ID3v2.4 tag written by bogem/id3v2 followed by audioBytes
// of 128 kbps CBR audio, so the duration is audioBytes/16 milliseconds.
func MP3(tags Tags, audioBytes int) ([]byte, error) {
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if tags.Year != 0 {
		tag.SetYear(strconv.Itoa(tags.Year))
	}
	if tags.Track != 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(tags.Track))
	}

	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return nil, err
	}
	audio := make([]byte, max(audioBytes, 4))
	for off := 0; off+4 <= len(audio); off += mpegFrameSize {
		binary.BigEndian.PutUint32(audio[off:], mpegFrameHeader)
	}
	buf.Write(audio)
	return buf.Bytes(), nil
}

// FLAC returns a FLAC stream written by go-flac: STREAMINFO for 44.1 kHz
// 16-bit stereo with the given sample count, a Vorbis comment block and,
// when tags.Cover is set, a PICTURE block.
func FLAC(tags Tags, samples uint64) ([]byte, error) {
	f := &goflac.File{
		Meta:   []*goflac.MetaDataBlock{{Type: goflac.StreamInfo, Data: flacStreamInfo(44100, 2, 16, samples)}},
		Frames: make([]byte, 1024),
	}
	// audio must open with a frame sync code for readers that check it
	f.Frames[0], f.Frames[1] = 0xFF, 0xF8

	cmts := flacvorbis.New()
	for _, kv := range vorbisPairs(tags) {
		if err := cmts.Add(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	block := cmts.Marshal()
	f.Meta = append(f.Meta, &block)

	if len(tags.Cover) > 0 {
		pic := flacPicture(tags)
		f.Meta = append(f.Meta, &pic)
	}
	return f.Marshal(), nil
}

func flacStreamInfo(rate, channels, bits, samples uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, uint16(4096))
	_ = binary.Write(&buf, binary.BigEndian, uint16(4096))
	buf.Write(make([]byte, 6))
	_ = binary.Write(&buf, binary.BigEndian, rate<<44|(channels-1)<<41|(bits-1)<<36|samples)
	buf.Write(make([]byte, 16))
	return buf.Bytes()
}

func flacPicture(tags Tags) goflac.MetaDataBlock {
	mime := tags.CoverMIME
	if mime == "" {
		mime = "image/jpeg"
	}
	pic := &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        mime,
		Width:       1,
		Height:      1,
		ColorDepth:  24,
		ImageData:   tags.Cover,
	}
	return pic.Marshal()
}

func vorbisPairs(tags Tags) [][2]string {
	var kv [][2]string
	if tags.Title != "" {
		kv = append(kv, [2]string{flacvorbis.FIELD_TITLE, tags.Title})
	}
	if tags.Artist != "" {
		kv = append(kv, [2]string{flacvorbis.FIELD_ARTIST, tags.Artist})
	}
	if tags.Album != "" {
		kv = append(kv, [2]string{flacvorbis.FIELD_ALBUM, tags.Album})
	}
	if tags.Track != 0 {
		kv = append(kv, [2]string{flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(tags.Track)})
	}
	if tags.Year != 0 {
		kv = append(kv, [2]string{flacvorbis.FIELD_DATE, strconv.Itoa(tags.Year)})
	}
	return kv
}

// Ogg returns an Ogg Vorbis stream at 44.1 kHz stereo whose last page has
// granule position samples. The comment packet is split over pages of at
// most 255 bytes.
func Ogg(tags Tags, samples int64) []byte {
	var comments bytes.Buffer
	comments.WriteString("\x03vorbis")
	vendor := "testaudio"
	_ = binary.Write(&comments, binary.LittleEndian, uint32(len(vendor)))
	comments.WriteString(vendor)

	entries := vorbisPairs(tags)
	if len(tags.Cover) > 0 {
		pic := flacPicture(tags)
		entries = append(entries, [2]string{"METADATA_BLOCK_PICTURE", base64.StdEncoding.EncodeToString(pic.Data)})
	}
	_ = binary.Write(&comments, binary.LittleEndian, uint32(len(entries)))
	for _, kv := range entries {
		entry := kv[0] + "=" + kv[1]
		_ = binary.Write(&comments, binary.LittleEndian, uint32(len(entry)))
		comments.WriteString(entry)
	}
	comments.WriteByte(1)

	var id bytes.Buffer
	id.WriteString("\x01vorbis")
	_ = binary.Write(&id, binary.LittleEndian, uint32(0))
	id.WriteByte(2)
	_ = binary.Write(&id, binary.LittleEndian, uint32(44100))
	_ = binary.Write(&id, binary.LittleEndian, [3]uint32{0, 128000, 0})
	id.Write([]byte{0xB8, 1})

	w := &oggWriter{serial: 0x4d53}
	w.page(0x02, 0, id.Bytes())
	packet := comments.Bytes()
	for i := 0; i < len(packet); i += 255 {
		end := min(i+255, len(packet))
		var flags byte
		if i > 0 {
			flags = 0x01
		}
		w.page(flags, -1, packet[i:end])
	}
	w.page(0x04, samples, make([]byte, 256))
	return w.buf.Bytes()
}

type oggWriter struct {
	buf    bytes.Buffer
	serial uint32
	seq    uint32
}

func (w *oggWriter) page(flags byte, granule int64, data []byte) {
	w.buf.WriteString("OggS")
	w.buf.WriteByte(0)
	w.buf.WriteByte(flags)
	_ = binary.Write(&w.buf, binary.LittleEndian, uint64(granule))
	_ = binary.Write(&w.buf, binary.LittleEndian, w.serial)
	_ = binary.Write(&w.buf, binary.LittleEndian, w.seq)
	_ = binary.Write(&w.buf, binary.LittleEndian, uint32(0))

	var laces []byte
	rest := len(data)
	for ; rest >= 255; rest -= 255 {
		laces = append(laces, 255)
	}
	laces = append(laces, byte(rest))
	w.buf.WriteByte(byte(len(laces)))
	w.buf.Write(laces)
	w.buf.Write(data)
	w.seq++
}

// WAV returns 16-bit stereo 44.1 kHz PCM of dataBytes with a LIST/INFO
// chunk carrying title, artist and album.
func WAV(tags Tags, dataBytes int) []byte {
	var info bytes.Buffer
	info.WriteString("INFO")
	for _, kv := range [][2]string{{"INAM", tags.Title}, {"IART", tags.Artist}, {"IPRD", tags.Album}} {
		if kv[1] != "" {
			writeChunk(&info, kv[0], append([]byte(kv[1]), 0))
		}
	}

	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:], 2)
	binary.LittleEndian.PutUint32(fmtChunk[4:], 44100)
	binary.LittleEndian.PutUint32(fmtChunk[8:], 176400)
	binary.LittleEndian.PutUint16(fmtChunk[12:], 4)
	binary.LittleEndian.PutUint16(fmtChunk[14:], 16)

	var body bytes.Buffer
	body.WriteString("WAVE")
	writeChunk(&body, "fmt ", fmtChunk)
	writeChunk(&body, "LIST", info.Bytes())
	writeChunk(&body, "data", make([]byte, dataBytes))

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func writeChunk(w *bytes.Buffer, id string, payload []byte) {
	w.WriteString(id)
	_ = binary.Write(w, binary.LittleEndian, uint32(len(payload)))
	w.Write(payload)
	if len(payload)%2 == 1 {
		w.WriteByte(0)
	}
}

// WriteFile writes data to dir/name, creating dir if needed, and returns
// the full path.
func WriteFile(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
