package binary

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortReader returns at most limit bytes from any ReadAt call, like a
// file truncated after its size was taken.
type shortReader struct {
	data  []byte
	limit int
}

func (s *shortReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:min(int(off)+s.limit, len(s.data))])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestSafeReader_ReadAt(t *testing.T) {
	data := sequence(16)
	sr := NewSafeReader(&shortReader{data: data, limit: 16}, 16, "track.mp3")

	buf := make([]byte, 4)
	require.NoError(t, sr.ReadAt(buf, 12, "ID3v1 tag"))
	assert.Equal(t, []byte{12, 13, 14, 15}, buf)
	assert.Equal(t, int64(16), sr.Size())
}

func TestSafeReader_ReadAt_OutOfRange(t *testing.T) {
	sr := NewSafeReader(&shortReader{data: sequence(16), limit: 16}, 16, "track.mp3")

	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{"past end", 20, 2},
		{"overrun", 14, 4},
		{"negative", -1, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := sr.ReadAt(make([]byte, tc.n), tc.off, "ID3v1 tag")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOutOfRange))
			assert.Contains(t, err.Error(), "track.mp3")
			assert.Contains(t, err.Error(), "ID3v1 tag")
		})
	}
}

func TestSafeReader_ShortSource(t *testing.T) {
	// size claims 16 bytes but the reader only ever delivers 8
	sr := NewSafeReader(&shortReader{data: sequence(8), limit: 8}, 16, "cut.ogg")
	err := sr.ReadAt(make([]byte, 4), 10, "last Ogg pages")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSafeReader_Window(t *testing.T) {
	sr := NewSafeReader(&shortReader{data: sequence(100), limit: 100}, 100, "a.mp3")

	buf, err := sr.Window(90, 64, "audio frame search")
	require.NoError(t, err)
	assert.Equal(t, sequence(100)[90:], buf)

	buf, err = sr.Window(100, 64, "audio frame search")
	require.NoError(t, err)
	assert.Empty(t, buf)

	_, err = sr.Window(101, 1, "audio frame search")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSafeReader_Tail(t *testing.T) {
	sr := NewSafeReader(&shortReader{data: sequence(50), limit: 50}, 50, "a.ogg")

	start, buf, err := sr.Tail(10, "last Ogg pages")
	require.NoError(t, err)
	assert.Equal(t, int64(40), start)
	assert.Equal(t, sequence(50)[40:], buf)

	start, buf, err = sr.Tail(1000, "last Ogg pages")
	require.NoError(t, err)
	assert.Zero(t, start)
	assert.Len(t, buf, 50)
}

func TestSafeReader_Byte(t *testing.T) {
	sr := NewSafeReader(&shortReader{data: sequence(30), limit: 30}, 30, "a.ogg")
	b, err := sr.Byte(26, "segment count")
	require.NoError(t, err)
	assert.Equal(t, byte(26), b)

	_, err = sr.Byte(30, "segment count")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFourCC(t *testing.T) {
	assert.Equal(t, uint32(0x54495432), FourCC("TIT2"))
	assert.Equal(t, uint32(0x666d7420), FourCC("fmt "))
	assert.Panics(t, func() { FourCC("ID3") })
}
