package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/simonhull/metastream"
	"github.com/simonhull/metastream/internal/dump"
	"github.com/simonhull/metastream/internal/types"
)

// view is the JSON shape of one file.
type view struct {
	Path     string   `json:"path"`
	URL      string   `json:"url,omitempty"`
	Format   string   `json:"format"`
	Size     int64    `json:"size"`
	Title    string   `json:"title,omitempty"`
	Artist   string   `json:"artist,omitempty"`
	Album    string   `json:"album,omitempty"`
	Track    int      `json:"track,omitempty"`
	Year     int      `json:"year,omitempty"`
	LengthMS int64    `json:"length_ms,omitempty"`
	Seekable bool     `json:"seekable"`
	Audio    string   `json:"audio,omitempty"`
	ArtMIME  string   `json:"art_mime,omitempty"`
	ArtSize  int      `json:"art_size,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func newView(res metastream.Result) view {
	v := view{Path: res.Path}
	if res.Err != nil {
		v.Error = res.Err.Error()
		return v
	}
	md := res.Metadata
	v.URL = md.URL
	v.Format = md.Format.String()
	v.Size = md.FileSize
	v.Title, v.Artist, v.Album = md.Title, md.Artist, md.Album
	v.Track, v.Year, v.LengthMS = md.Track, md.Year, md.LengthMS
	v.Seekable = md.Flags.Has(metastream.FlagSeekable)
	if md.Audio.Codec != "" {
		v.Audio = md.Audio.String()
	}
	v.ArtMIME, v.ArtSize = md.AlbumArtMIME, len(md.AlbumArt)
	for _, w := range md.Warnings {
		v.Warnings = append(v.Warnings, w.String())
	}
	return v
}

func (a *app) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show", a.stderr, "[-json] [-art DIR] file...")
	asJSON := fs.Bool("json", false, "print JSON, one object per line")
	artDir := fs.String("art", "", "write album art into this directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	opts := a.extractOptions()
	if *artDir != "" {
		opts = append(opts, metastream.WithAlbumArt(true))
	}

	failed := 0
	enc := json.NewEncoder(a.stdout)
	for _, res := range metastream.ExtractMany(ctx, fs.Args(), opts...) {
		if res.Err != nil {
			failed++
			a.logger.Debug("extract failed", "path", res.Path, "error", res.Err)
		}
		if res.Err == nil && *artDir != "" && res.Metadata.HasAlbumArt() {
			out, err := writeArt(*artDir, res.Path, res.Metadata)
			if err != nil {
				return err
			}
			a.logger.Debug("album art written", "path", res.Path, "file", out)
		}
		if *asJSON {
			if err := enc.Encode(newView(res)); err != nil {
				return err
			}
			continue
		}
		printText(a.stdout, res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, fs.NArg())
	}
	return nil
}

func printText(w io.Writer, res metastream.Result) {
	if res.Err != nil {
		fmt.Fprintf(w, "%s: error: %v\n\n", res.Path, res.Err)
		return
	}
	md := res.Metadata
	fmt.Fprintf(w, "%s\n", res.Path)
	fmt.Fprintf(w, "  Format:   %s (%s)\n", md.Format, humanize.Bytes(uint64(md.FileSize)))
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %-9s %s\n", name+":", value)
		}
	}
	field("Title", md.Title)
	field("Artist", md.Artist)
	field("Album", md.Album)
	if md.Track > 0 {
		field("Track", fmt.Sprint(md.Track))
	}
	if md.Year > 0 {
		field("Year", fmt.Sprint(md.Year))
	}
	if md.LengthMS > 0 {
		field("Length", md.Duration().String())
	}
	if md.Audio.Codec != "" {
		field("Audio", md.Audio.String())
	}
	if md.HasAlbumArt() {
		field("Art", fmt.Sprintf("%s, %s", md.AlbumArtMIME, humanize.Bytes(uint64(len(md.AlbumArt)))))
	}
	for _, warn := range md.Warnings {
		field("Warning", warn.String())
	}
	fmt.Fprintln(w)
}

// writeArt saves the album art as dir/<file base>.<ext>. When that name
// holds different bytes, a numeric suffix is added rather than overwriting
// art written for another file with the same base name.
func writeArt(dir, path string, md *metastream.Metadata) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := artExtension(md.AlbumArtMIME)
	for n := 1; n <= maxArtNames; n++ {
		name := base + ext
		if n > 1 {
			name = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		out := filepath.Join(dir, name)
		f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			if existing, rerr := os.ReadFile(out); rerr == nil && bytes.Equal(existing, md.AlbumArt) {
				return out, nil
			}
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(md.AlbumArt); err != nil {
			f.Close()
			return "", err
		}
		return out, f.Close()
	}
	return "", fmt.Errorf("album art for %s: %d names under %s already taken", path, maxArtNames, dir)
}

const maxArtNames = 1000

func artExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func (a *app) dump(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: metastream dump file...")
		return errUsage
	}
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		stat, err := f.Stat()
		if err == nil {
			err = dump.Write(ctx, a.stdout, types.Source{R: f, Size: stat.Size(), Name: path})
		}
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
