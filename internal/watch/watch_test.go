package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/metastream/internal/catalog"
	"github.com/simonhull/metastream/internal/scanner"
	"github.com/simonhull/metastream/internal/testaudio"
)

func TestWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer cat.Close()

	dir := t.TempDir()
	sub := filepath.Join(dir, "album")
	require.NoError(t, os.Mkdir(sub, 0o755))

	w, err := New(scanner.New(cat, nil, 1), cat, nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Add(dir))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	data, err := testaudio.FLAC(testaudio.Tags{Title: "Watched"}, 44100)
	require.NoError(t, err)
	path, err := testaudio.WriteFile(sub, "track.flac", data)
	require.NoError(t, err)
	_, err = testaudio.WriteFile(sub, "notes.txt", []byte("ignored"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		e, err := cat.Get(ctx, path)
		return err == nil && e.Title == "Watched"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		_, err := cat.Get(ctx, path)
		return err == catalog.ErrNotFound
	}, 5*time.Second, 20*time.Millisecond)

	entries, err := cat.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type countingScanner struct {
	calls chan string
}

func (c *countingScanner) ScanFile(_ context.Context, path string) error {
	c.calls <- path
	return nil
}

func TestWatcher_SettlesBurstOfWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cat, err := catalog.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer cat.Close()

	scan := &countingScanner{calls: make(chan string, 16)}
	w, err := New(scan, cat, nil, 200*time.Millisecond)
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, w.Add(dir))
	go func() { _ = w.Run(ctx) }()

	path := filepath.Join(dir, "growing.mp3")
	f, err := os.Create(path)
	require.NoError(t, err)
	for range 5 {
		_, err := f.Write(make([]byte, 1024))
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	select {
	case got := <-scan.calls:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("file never settled")
	}
	select {
	case extra := <-scan.calls:
		t.Fatalf("scanned twice: %s", extra)
	case <-time.After(500 * time.Millisecond):
	}
}
