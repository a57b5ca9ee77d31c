// Package scanner walks directory trees and keeps the catalog in step with
// the audio files it finds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/simonhull/metastream"
	"github.com/simonhull/metastream/internal/catalog"
)

// Stats summarises one scan.
type Stats struct {
	Seen      int64 // files with a supported extension
	Skipped   int64 // unchanged since the last scan
	Extracted int64
	Failed    int64
}

// Scanner extracts files into a catalog.
type Scanner struct {
	cat    *catalog.Catalog
	logger *slog.Logger
	jobs   int
	opts   []metastream.Option
}

// New returns a Scanner. jobs bounds concurrent extractions; zero or less
// means one per CPU. opts are passed to every extraction.
func New(cat *catalog.Catalog, logger *slog.Logger, jobs int, opts ...metastream.Option) *Scanner {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{cat: cat, logger: logger, jobs: jobs, opts: opts}
}

// Scan walks every root and extracts files that are new or changed. Hidden
// files and directories are skipped. Extraction failures are counted and
// logged, not returned; only catalog errors and cancellation end the scan.
func (s *Scanner) Scan(ctx context.Context, roots ...string) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err != nil {
				s.logger.Warn("walk error", "path", path, "error", err)
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !metastream.SupportedExtension(path) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				s.logger.Warn("stat failed", "path", path, "error", err)
				return nil
			}
			atomic.AddInt64(&stats.Seen, 1)

			g.Go(func() error {
				fresh, err := s.cat.Fresh(gctx, path, info.Size(), info.ModTime())
				if err != nil {
					return err
				}
				if fresh {
					atomic.AddInt64(&stats.Skipped, 1)
					return nil
				}
				return s.extract(gctx, path, info, &stats)
			})
			return nil
		})
		if err != nil {
			_ = g.Wait()
			return stats, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	err := g.Wait()
	return stats, err
}

// ScanFile extracts one file unconditionally and records it.
func (s *Scanner) ScanFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	var stats Stats
	if err := s.extract(ctx, path, info, &stats); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("extract %s failed", path)
	}
	return nil
}

// extract runs one extraction. Only catalog failures are returned.
func (s *Scanner) extract(ctx context.Context, path string, info fs.FileInfo, stats *Stats) error {
	md, err := metastream.Open(ctx, path, s.opts...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		atomic.AddInt64(&stats.Failed, 1)
		level := slog.LevelWarn
		if errors.Is(err, metastream.ErrNoMetadata) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "extract failed", "path", path, "error", err)
		return nil
	}
	for _, w := range md.Warnings {
		s.logger.Debug("extract warning", "path", path, "warning", w.String())
	}

	entry := catalog.NewEntry(path, info.Size(), info.ModTime(), md)
	if err := s.cat.Upsert(ctx, entry); err != nil {
		return err
	}
	atomic.AddInt64(&stats.Extracted, 1)
	s.logger.Debug("extracted", "path", path, "format", md.Format.String(), "title", md.Title)
	return nil
}
