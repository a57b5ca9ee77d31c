package dump

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/metastream/internal/testaudio"
	"github.com/simonhull/metastream/internal/types"
)

func write(t *testing.T, name string, data []byte) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Write(context.Background(), &out, types.Source{R: bytes.NewReader(data), Size: int64(len(data)), Name: name})
	return out.String(), err
}

func TestWrite(t *testing.T) {
	tags := testaudio.Tags{Title: "Dumped", Artist: "Someone"}
	mp3, err := testaudio.MP3(tags, 1000)
	require.NoError(t, err)
	flac, err := testaudio.FLAC(tags, 44100)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want []string
	}{
		{"a.flac", flac, []string{"FLAC", "STREAMINFO", "VORBIS_COMMENT", "last"}},
		{"a.ogg", testaudio.Ogg(tags, 44100), []string{"Ogg Vorbis", "page 0", "granule 44100"}},
		{"a.wav", testaudio.WAV(tags, 100), []string{"WAV", `"fmt "`, `"LIST"`, `"data"`}},
		{"a.mp3", mp3, []string{"MP3", "ID3v2.4", "TIT2", "TPE1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := write(t, tt.name, tt.data)
			require.NoError(t, err)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestWrite_Unsupported(t *testing.T) {
	_, err := write(t, "notes.txt", []byte("plain text file"))
	var unsupported *types.UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
}
