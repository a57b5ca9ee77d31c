package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/metastream/internal/catalog"
	"github.com/simonhull/metastream/internal/testaudio"
)

func setup(t *testing.T) (*Scanner, *catalog.Catalog, string) {
	t.Helper()
	cat, err := catalog.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return New(cat, nil, 2), cat, t.TempDir()
}

func writeLibrary(t *testing.T, dir string) {
	t.Helper()
	mp3, err := testaudio.MP3(testaudio.Tags{Title: "One", Artist: "A"}, 16000)
	require.NoError(t, err)
	flac, err := testaudio.FLAC(testaudio.Tags{Title: "Two", Artist: "A"}, 44100)
	require.NoError(t, err)

	files := map[string][]byte{
		"a/one.mp3":          mp3,
		"a/b/two.flac":       flac,
		"three.ogg":          testaudio.Ogg(testaudio.Tags{Title: "Three"}, 44100),
		"cover.jpg":          []byte("not audio"),
		".hidden/secret.mp3": mp3,
		"broken.flac":        []byte("fLaC"),
	}
	for name, data := range files {
		_, err := testaudio.WriteFile(dir, name, data)
		require.NoError(t, err)
	}
}

func TestScan(t *testing.T) {
	s, cat, dir := setup(t)
	writeLibrary(t, dir)
	ctx := context.Background()

	stats, err := s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Stats{Seen: 4, Extracted: 3, Failed: 1}, stats)

	entry, err := cat.Get(ctx, filepath.Join(dir, "a", "b", "two.flac"))
	require.NoError(t, err)
	assert.Equal(t, "Two", entry.Title)
	assert.Equal(t, "FLAC", entry.Format)
	assert.Equal(t, int64(1000), entry.LengthMS)

	_, err = cat.Get(ctx, filepath.Join(dir, ".hidden", "secret.mp3"))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestScan_SkipsUnchanged(t *testing.T) {
	s, _, dir := setup(t)
	writeLibrary(t, dir)
	ctx := context.Background()

	_, err := s.Scan(ctx, dir)
	require.NoError(t, err)

	// touch one file so it is re-extracted
	path := filepath.Join(dir, "three.ogg")
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	stats, err := s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Seen)
	assert.Equal(t, int64(2), stats.Skipped)
	assert.Equal(t, int64(1), stats.Extracted)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestScan_Canceled(t *testing.T) {
	s, _, dir := setup(t)
	writeLibrary(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanFile(t *testing.T) {
	s, cat, dir := setup(t)
	writeLibrary(t, dir)
	ctx := context.Background()

	path := filepath.Join(dir, "a", "one.mp3")
	require.NoError(t, s.ScanFile(ctx, path))
	entry, err := cat.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "One", entry.Title)
	assert.Equal(t, int64(1000), entry.LengthMS)

	assert.Error(t, s.ScanFile(ctx, filepath.Join(dir, "broken.flac")))
	assert.Error(t, s.ScanFile(ctx, filepath.Join(dir, "missing.mp3")))
}
