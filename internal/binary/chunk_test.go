package binary

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockReader implements io.ReaderAt for testing and counts ReadAt calls.
type mockReader struct {
	data  []byte
	reads int
}

func (m *mockReader) ReadAt(p []byte, off int64) (n int, err error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func sequence(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

func TestChunkReader_SmallBufferReplaced(t *testing.T) {
	r := NewChunkReader(&mockReader{}, 0, make([]byte, 16))
	assert.Equal(t, DefaultBufferSize, r.Cap())
	assert.True(t, r.EOF())
}

func TestChunkReader_FillIsNoOpWhenBuffered(t *testing.T) {
	ctx := context.Background()
	src := &mockReader{data: sequence(2000)}
	r := NewChunkReader(src, int64(len(src.data)), make([]byte, MinBufferSize))

	require.NoError(t, r.Fill(ctx, 10))
	assert.Equal(t, 1, src.reads)
	assert.Equal(t, MinBufferSize, r.Buffered())

	require.NoError(t, r.Fill(ctx, 100))
	assert.Equal(t, 1, src.reads, "no I/O when enough bytes are buffered")
}

func TestChunkReader_CompactsAndRefills(t *testing.T) {
	ctx := context.Background()
	src := &mockReader{data: sequence(2000)}
	r := NewChunkReader(src, int64(len(src.data)), make([]byte, MinBufferSize))

	require.NoError(t, r.Fill(ctx, 4))
	_, err := r.Next(500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), r.Pos())

	require.NoError(t, r.Fill(ctx, 100))
	assert.Equal(t, 2, src.reads)
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(500%256), b)
}

func TestChunkReader_FillPastEnd(t *testing.T) {
	ctx := context.Background()
	src := &mockReader{data: sequence(10)}
	r := NewChunkReader(src, 10, nil)

	err := r.Fill(ctx, 20)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, r.EOF())
	assert.Equal(t, 10, r.Buffered())

	assert.NoError(t, r.Fill(ctx, 0), "opportunistic fill tolerates a short source")
}

func TestChunkReader_FillTooLarge(t *testing.T) {
	r := NewChunkReader(&mockReader{data: sequence(10)}, 10, make([]byte, MinBufferSize))
	assert.ErrorIs(t, r.Fill(context.Background(), MinBufferSize+1), ErrRequestTooLarge)
}

func TestChunkReader_FillCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &mockReader{data: sequence(10)}
	r := NewChunkReader(src, 10, nil)

	assert.ErrorIs(t, r.Fill(ctx, 4), context.Canceled)
	assert.Equal(t, 0, src.reads)
}

func TestChunkReader_TypedReads(t *testing.T) {
	data := []byte{
		0x12, 0x34, // BE16
		0x34, 0x12, // LE16
		0x12, 0x34, 0x56, // BE24
		0x12, 0x34, 0x56, 0x78, // BE32
		0x78, 0x56, 0x34, 0x12, // LE32
		0x3F, 0x80, 0x00, 0x00, // 1.0 BE
		0x00, 0x00, 0x80, 0x3F, // 1.0 LE
		0x01, 0, 0, 0, 0, 0, 0, 0, // LE64
	}
	r := NewChunkReader(&mockReader{data: data}, int64(len(data)), nil)
	require.NoError(t, r.Fill(context.Background(), len(data)))

	v16, _ := r.Uint16BE()
	assert.Equal(t, uint16(0x1234), v16)
	v16, _ = r.Uint16LE()
	assert.Equal(t, uint16(0x1234), v16)
	v24, _ := r.Uint24BE()
	assert.Equal(t, uint32(0x123456), v24)
	v32, _ := r.Uint32BE()
	assert.Equal(t, uint32(0x12345678), v32)
	v32, _ = r.Uint32LE()
	assert.Equal(t, uint32(0x12345678), v32)
	f, _ := r.Float32BE()
	assert.Equal(t, float32(1), f)
	f, _ = r.Float32LE()
	assert.Equal(t, float32(1), f)
	v64, err := r.Uint64LE()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v64)

	_, err = r.ReadByte()
	assert.ErrorIs(t, err, ErrBufferUnderrun)
}

func TestChunkReader_TypedReadsNeverFetch(t *testing.T) {
	src := &mockReader{data: sequence(100)}
	r := NewChunkReader(src, 100, nil)

	_, err := r.Uint32BE()
	assert.ErrorIs(t, err, ErrBufferUnderrun)
	assert.Equal(t, 0, src.reads)
}

func TestChunkReader_SkipBeyondBuffer(t *testing.T) {
	ctx := context.Background()
	src := &mockReader{data: sequence(4000)}
	r := NewChunkReader(src, 4000, make([]byte, MinBufferSize))

	require.NoError(t, r.Fill(ctx, 1))
	r.Skip(3000)
	assert.Equal(t, int64(3000), r.Pos())
	assert.Equal(t, 0, r.Buffered())
	assert.Equal(t, 1, src.reads, "skip is bookkeeping only")

	require.NoError(t, r.Fill(ctx, 1))
	b, _ := r.ReadByte()
	assert.Equal(t, byte(3000%256), b)

	r.Skip(5000)
	assert.True(t, r.EOF())
}

func TestChunkReader_SeekTo(t *testing.T) {
	ctx := context.Background()
	r := NewChunkReader(&mockReader{data: sequence(600)}, 600, nil)

	r.SeekTo(590)
	require.NoError(t, r.Fill(ctx, 10))
	b, _ := r.ReadByte()
	assert.Equal(t, byte(590%256), b)

	r.SeekTo(600)
	assert.True(t, r.EOF())
	assert.ErrorIs(t, r.Fill(ctx, 1), io.ErrUnexpectedEOF)
}

func TestChunkReader_ReadFull(t *testing.T) {
	ctx := context.Background()
	src := &mockReader{data: sequence(3000)}
	r := NewChunkReader(src, 3000, make([]byte, MinBufferSize))
	require.NoError(t, r.Fill(ctx, 1))
	r.Skip(10)

	dst := make([]byte, 1500)
	n, err := r.ReadFull(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, 1500, n)
	assert.Equal(t, sequence(3000)[10:1510], dst)
	assert.Equal(t, int64(1510), r.Pos())

	rest := make([]byte, 2000)
	n, err = r.ReadFull(ctx, rest)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 1490, n)

	n, err = r.ReadFull(ctx, rest)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, n)
}
