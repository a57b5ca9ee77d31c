package ogg

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/go-flac/flacpicture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binutil "github.com/simonhull/metastream/internal/binary"
	"github.com/simonhull/metastream/internal/types"
)

const testSerial = 12345

// oggWriter accumulates pages.
type oggWriter struct {
	buf bytes.Buffer
	seq uint32
}

func (w *oggWriter) page(headerType byte, granule int64, serial uint32, data []byte) {
	w.buf.WriteString("OggS")
	w.buf.WriteByte(0) // version
	w.buf.WriteByte(headerType)
	_ = binary.Write(&w.buf, binary.LittleEndian, uint64(granule))
	_ = binary.Write(&w.buf, binary.LittleEndian, serial)
	_ = binary.Write(&w.buf, binary.LittleEndian, w.seq)
	_ = binary.Write(&w.buf, binary.LittleEndian, uint32(0)) // CRC, not checked

	var laces []byte
	rest := len(data)
	for rest >= 255 {
		laces = append(laces, 255)
		rest -= 255
	}
	laces = append(laces, byte(rest))
	w.buf.WriteByte(byte(len(laces)))
	w.buf.Write(laces)
	w.buf.Write(data)
	w.seq++
}

// packet writes data split across pages of at most chunk bytes, marking
// every page after the first as a continuation.
func (w *oggWriter) packet(serial uint32, data []byte, chunk int) {
	for i := 0; i < len(data); i += chunk {
		end := min(i+chunk, len(data))
		var flags byte
		if i > 0 {
			flags = flagContinued
		}
		granule := int64(0)
		if end < len(data) {
			granule = -1
		}
		w.page(flags, granule, serial, data[i:end])
	}
}

func (w *oggWriter) bytes() []byte { return w.buf.Bytes() }

func vorbisID(channels byte, rate, nominal uint32) []byte {
	b := &bytes.Buffer{}
	b.WriteByte(1)
	b.WriteString("vorbis")
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	b.WriteByte(channels)
	_ = binary.Write(b, binary.LittleEndian, rate)
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	_ = binary.Write(b, binary.LittleEndian, nominal)
	_ = binary.Write(b, binary.LittleEndian, uint32(0))
	b.WriteByte(0xB8)
	b.WriteByte(1)
	return b.Bytes()
}

func commentBody(comments ...string) []byte {
	b := &bytes.Buffer{}
	vendor := "Xiph.Org libVorbis I 20200704"
	_ = binary.Write(b, binary.LittleEndian, uint32(len(vendor)))
	b.WriteString(vendor)
	_ = binary.Write(b, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		_ = binary.Write(b, binary.LittleEndian, uint32(len(c)))
		b.WriteString(c)
	}
	return b.Bytes()
}

func vorbisComment(comments ...string) []byte {
	return append([]byte("\x03vorbis"), append(commentBody(comments...), 1)...)
}

func opusHead(channels byte, preSkip uint16) []byte {
	b := &bytes.Buffer{}
	b.WriteString("OpusHead")
	b.WriteByte(1)
	b.WriteByte(channels)
	_ = binary.Write(b, binary.LittleEndian, preSkip)
	_ = binary.Write(b, binary.LittleEndian, uint32(44100))
	_ = binary.Write(b, binary.LittleEndian, uint16(0))
	b.WriteByte(0)
	return b.Bytes()
}

// createVorbis builds a Vorbis stream with the comment packet split into
// pages of chunk bytes and a final audio page at granule.
func createVorbis(chunk int, granule int64, comments ...string) []byte {
	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, vorbisID(2, 44100, 128000))
	w.packet(testSerial, vorbisComment(comments...), chunk)
	w.page(0, granule/2, testSerial, make([]byte, 400))
	w.page(flagEOS, granule, testSerial, make([]byte, 400))
	return w.bytes()
}

func extract(t *testing.T, data []byte, opts *types.ExtractOptions) (*types.Metadata, error) {
	t.Helper()
	src := types.Source{R: bytes.NewReader(data), Size: int64(len(data)), Name: "test.ogg"}
	return Extract(context.Background(), src, opts)
}

func TestExtract_Vorbis(t *testing.T) {
	data := createVorbis(4096, 441000, "TITLE=Test Song", "ARTIST=Test Artist", "ALBUM=Test Album", "TRACKNUMBER=2", "DATE=2001")

	md, err := extract(t, data, nil)
	require.NoError(t, err)
	assert.Equal(t, types.FormatOgg, md.Format)
	assert.False(t, md.Flags.Has(types.FlagSeekable))
	assert.Equal(t, "Test Song", md.Title)
	assert.Equal(t, "Test Artist", md.Artist)
	assert.Equal(t, "Test Album", md.Album)
	assert.Equal(t, 2, md.Track)
	assert.Equal(t, 2001, md.Year)
	assert.Equal(t, int64(10000), md.LengthMS)

	assert.Equal(t, "Vorbis", md.Audio.Codec)
	assert.Equal(t, 44100, md.Audio.SampleRate)
	assert.Equal(t, 2, md.Audio.Channels)
	assert.Equal(t, 128000, md.Audio.Bitrate)
}

func TestExtract_ArtistsJoined(t *testing.T) {
	md, err := extract(t, createVorbis(4096, 44100, "ARTIST=A", "ARTIST=B"), nil)
	require.NoError(t, err)
	assert.Equal(t, "A, B", md.Artist)
}

func TestExtract_CommentAcrossPages(t *testing.T) {
	for _, chunk := range []int{7, 50, 255, 256} {
		data := createVorbis(chunk, 44100,
			"TITLE=A fairly long title that will not fit in one small page",
			"ARTIST=Someone",
			"ALBUM=Spread Out",
		)
		md, err := extract(t, data, nil)
		require.NoError(t, err, "chunk %d", chunk)
		assert.Equal(t, "A fairly long title that will not fit in one small page", md.Title, "chunk %d", chunk)
		assert.Equal(t, "Someone", md.Artist, "chunk %d", chunk)
		assert.Equal(t, "Spread Out", md.Album, "chunk %d", chunk)
	}
}

func TestExtract_InterleavedStreamSkipped(t *testing.T) {
	packet := vorbisComment("TITLE=Interleaved", "ALBUM=Two Streams")
	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, vorbisID(2, 48000, 0))
	w.page(flagBOS, 0, 999, []byte("other stream header"))
	w.page(0, -1, testSerial, packet[:20])
	w.page(0, 0, 999, []byte("other stream payload"))
	w.page(flagContinued, 0, testSerial, packet[20:])

	md, err := extract(t, w.bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Interleaved", md.Title)
	assert.Equal(t, "Two Streams", md.Album)
}

func TestExtract_CorruptedSignatureSkipped(t *testing.T) {
	bad := vorbisID(1, 8000, 0)
	copy(bad[5:7], "XX") // "vorbXX"

	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, bad)
	w.page(0, 0, testSerial, vorbisID(2, 22050, 64000))
	w.packet(testSerial, vorbisComment("TITLE=Recovered"), 4096)

	md, err := extract(t, w.bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Recovered", md.Title)
	assert.Equal(t, 22050, md.Audio.SampleRate)
	assert.Equal(t, 2, md.Audio.Channels)
}

func TestExtract_Opus(t *testing.T) {
	tags := append([]byte("OpusTags"), commentBody("TITLE=Opus Song", "ARTIST=Opus Artist")...)
	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, opusHead(2, 312))
	w.packet(testSerial, tags, 4096)
	w.page(flagEOS, 48000*5+312, testSerial, make([]byte, 2000))
	data := w.bytes()

	src := types.Source{R: bytes.NewReader(data), Size: int64(len(data)), Name: "test.opus"}
	md, err := Extract(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, types.FormatOpus, md.Format)
	assert.Equal(t, "Opus Song", md.Title)
	assert.Equal(t, "Opus Artist", md.Artist)
	assert.Equal(t, int64(5000), md.LengthMS)
	assert.Equal(t, "Opus", md.Audio.Codec)
	assert.Equal(t, 48000, md.Audio.SampleRate)
	assert.Equal(t, int(int64(len(data))*8*1000/5000), md.Audio.Bitrate)
}

func TestExtract_PictureAcrossPages(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF}, 500)
	pic := &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        "image/png",
		ImageData:   image,
	}
	block := pic.Marshal()
	data := createVorbis(300, 44100,
		"METADATA_BLOCK_PICTURE="+base64.StdEncoding.EncodeToString(block.Data),
		"TITLE=Art",
	)

	md, err := extract(t, data, &types.ExtractOptions{AlbumArt: true})
	require.NoError(t, err)
	assert.Equal(t, image, md.AlbumArt)
	assert.Equal(t, "image/png", md.AlbumArtMIME)
	assert.Equal(t, "Art", md.Title)
}

func TestExtract_BrokenContinuationKeepsEarlierFields(t *testing.T) {
	packet := vorbisComment("TITLE=Early", "ALBUM=Late")
	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, vorbisID(2, 44100, 0))
	split := len(packet) - 6
	w.page(0, -1, testSerial, packet[:split])
	w.buf.WriteString("JUNKJUNKJUNKJUNKJUNKJUNKJUNKJUNK")

	md, err := extract(t, w.bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Early", md.Title)
	assert.Empty(t, md.Album)
	assert.NotEmpty(t, md.Warnings)
}

func TestExtract_NotOgg(t *testing.T) {
	md, err := extract(t, bytes.Repeat([]byte("RIFF"), 20), nil)
	assert.Nil(t, md)
	var corrupted *types.CorruptedFileError
	assert.True(t, errors.As(err, &corrupted))
}

func TestExtract_NoCommentHeader(t *testing.T) {
	w := &oggWriter{}
	w.page(flagBOS, 0, testSerial, vorbisID(2, 44100, 0))
	w.page(0, 1000, testSerial, make([]byte, 100))

	md, err := extract(t, w.bytes(), nil)
	assert.Nil(t, md)
	var corrupted *types.CorruptedFileError
	require.True(t, errors.As(err, &corrupted))
	assert.Contains(t, corrupted.Reason, ErrNoCommentHeader.Error())
}

func TestExtract_DurationScanDisabled(t *testing.T) {
	md, err := extract(t, createVorbis(4096, 441000, "TITLE=x"), &types.ExtractOptions{})
	require.NoError(t, err)
	assert.Zero(t, md.LengthMS)
}

func TestExtract_Idempotent(t *testing.T) {
	data := createVorbis(33, 88200, "TITLE=Same", "ARTIST=A", "ARTIST=B")
	first, err := extract(t, data, nil)
	require.NoError(t, err)
	second, err := extract(t, data, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStream_ReadAndSkipAcrossPages(t *testing.T) {
	payload := []byte("0123456789abcdefghijklmnopqrstuvwxyz")
	w := &oggWriter{}
	w.packet(testSerial, payload, 5)
	data := w.bytes()

	ctx := context.Background()
	r := binutil.NewChunkReader(bytes.NewReader(data), int64(len(data)), nil)
	s := NewStream(r, "")

	got := make([]byte, 12)
	_, err := s.ReadFull(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "0123456789ab", string(got))

	require.NoError(t, s.Skip(ctx, 10))
	v, err := s.Uint32LE(ctx)
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian.Uint32([]byte("mnop")), v)

	rest := make([]byte, 10)
	_, err = s.ReadFull(ctx, rest)
	require.NoError(t, err)
	assert.Equal(t, "qrstuvwxyz", string(rest))

	_, err = s.ReadFull(ctx, make([]byte, 1))
	assert.Error(t, err)
	assert.Error(t, s.Skip(ctx, 1))
}

func TestPages(t *testing.T) {
	data := createVorbis(100, 44100, "TITLE=Paged")
	var pages []PageHeader
	src := types.Source{R: bytes.NewReader(data), Size: int64(len(data))}
	require.NoError(t, Pages(context.Background(), src, func(h PageHeader) error {
		pages = append(pages, h)
		return nil
	}))

	require.GreaterOrEqual(t, len(pages), 4)
	assert.True(t, pages[0].BOS())
	assert.Equal(t, int64(0), pages[0].Offset)
	assert.True(t, pages[len(pages)-1].EOS())
	assert.Equal(t, int64(44100), pages[len(pages)-1].Granule)
	for i, p := range pages {
		assert.Equal(t, uint32(i), p.Sequence)
	}
}
