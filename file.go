package metastream

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/metastream/internal/flac"
	"github.com/simonhull/metastream/internal/id3"
	"github.com/simonhull/metastream/internal/ogg"
	"github.com/simonhull/metastream/internal/registry"
	"github.com/simonhull/metastream/internal/types"
)

// Extract reads metadata from r, which holds size bytes. name is used for
// error messages and as a hint when the content alone does not identify
// the container; it may be empty.
//
// The container is detected from its leading bytes and handed to the
// matching extractor. Content that matches no container goes to the MP3
// extractor, which falls back to an ID3v1 trailer. A nil *Metadata is
// always accompanied by an error.
//
// Example:
//
//	f, _ := os.Open("song.flac")
//	info, _ := f.Stat()
//	md, err := metastream.Extract(ctx, f, info.Size(), f.Name())
//	if err != nil {
//		return err
//	}
//	fmt.Println(md)
func Extract(ctx context.Context, r io.ReaderAt, size int64, name string, opts ...Option) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	format, err := types.DetectFormat(r, size, name)
	if err != nil {
		return nil, err
	}
	if format == FormatUnknown {
		// neither magic nor extension matched; an ID3v1 trailer may still be there
		format = FormatMP3
	}
	e := registry.Get(format)
	if e == nil {
		return nil, &UnsupportedFormatError{
			Path:   name,
			Reason: fmt.Sprintf("no extractor for format %s", format),
		}
	}
	o.extract.Logger.Debug("extracting", "path", name, "format", format.String(), "size", size)
	return e.Extract(ctx, types.Source{R: r, Size: size, Name: name}, o.extractOptions())
}

// ExtractID3 reads an MP3, AAC or WAV file: ID3v2 at the start, a RIFF
// structure with an optional trailing id3 chunk, and an ID3v1 trailer.
func ExtractID3(ctx context.Context, r io.ReaderAt, size int64, name string, opts ...Option) (*Metadata, error) {
	o := newOptions(opts)
	return id3.Extract(ctx, types.Source{R: r, Size: size, Name: name}, o.extractOptions())
}

// ExtractFLAC reads a native FLAC file.
func ExtractFLAC(ctx context.Context, r io.ReaderAt, size int64, name string, opts ...Option) (*Metadata, error) {
	o := newOptions(opts)
	return flac.Extract(ctx, types.Source{R: r, Size: size, Name: name}, o.extractOptions())
}

// ExtractOGG reads an Ogg Vorbis or Ogg Opus file.
func ExtractOGG(ctx context.Context, r io.ReaderAt, size int64, name string, opts ...Option) (*Metadata, error) {
	o := newOptions(opts)
	return ogg.Extract(ctx, types.Source{R: r, Size: size, Name: name}, o.extractOptions())
}

// Open opens the file at path and extracts its metadata. URL is set to a
// file:// URL for the absolute path.
func Open(ctx context.Context, path string, opts ...Option) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if stat.IsDir() {
		return nil, &UnsupportedFormatError{Path: path, Reason: "is a directory"}
	}

	md, err := Extract(ctx, f, stat.Size(), path, opts...)
	if err != nil {
		return nil, err
	}
	md.FileName = path
	md.FileSize = stat.Size()
	md.URL = fileURL(path)
	return md, nil
}

func fileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// Result is the outcome of one file in ExtractMany.
type Result struct {
	Path     string
	Metadata *Metadata
	Err      error
}

// ExtractMany opens and extracts paths concurrently, up to runtime.NumCPU()
// at a time unless WithConcurrency says otherwise. Results are returned in
// input order. A failing file does not stop the others; its error is
// reported in its Result.
//
// Each job gets its own scratch buffers, so WithBuffers is ignored here.
//
// Example:
//
//	for _, res := range metastream.ExtractMany(ctx, paths) {
//		if res.Err != nil {
//			log.Printf("%s: %v", res.Path, res.Err)
//			continue
//		}
//		fmt.Println(res.Metadata)
//	}
func ExtractMany(ctx context.Context, paths []string, opts ...Option) []Result {
	results := make([]Result, len(paths))
	if len(paths) == 0 {
		return results
	}
	o := newOptions(opts)
	limit := o.concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		results[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			jobOpts := append(opts[:len(opts):len(opts)], WithBuffers(&Buffers{}))
			md, err := Open(gctx, path, jobOpts...)
			results[i].Metadata, results[i].Err = md, err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
