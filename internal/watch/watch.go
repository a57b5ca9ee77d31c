// Package watch keeps the catalog current while files are added, changed
// and removed under the watched directories.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/simonhull/metastream"
	"github.com/simonhull/metastream/internal/catalog"
)

// FileScanner extracts one file into the catalog.
type FileScanner interface {
	ScanFile(ctx context.Context, path string) error
}

// Watcher watches directory trees with fsnotify. A created or written
// file is extracted once its size and modification time have stayed the
// same for the settle delay; a removed or renamed file is dropped from the
// catalog.
type Watcher struct {
	fs     *fsnotify.Watcher
	scan   FileScanner
	cat    *catalog.Catalog
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*pendingFile
	wg      sync.WaitGroup
	ctx     context.Context
}

// pendingFile tracks a file that may still be changing.
type pendingFile struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a Watcher. Call Add for each root, then Run.
func New(scan FileScanner, cat *catalog.Catalog, logger *slog.Logger, settle time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		fs:      fw,
		scan:    scan,
		cat:     cat,
		logger:  logger,
		settle:  settle,
		pending: make(map[string]*pendingFile),
		ctx:     context.Background(),
	}, nil
}

// Add watches root and every directory below it, hidden ones excepted.
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.logger.Debug("added watch", "path", path)
		return nil
	})
}

// Run handles events until ctx is cancelled, then stops every pending
// timer, waits for running extractions and closes the fsnotify watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
	w.fs.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancel(path)
		w.remove(path)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				if err := w.Add(path); err != nil {
					w.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
			return
		}
		if metastream.SupportedExtension(path) {
			w.schedule(path, info)
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string, info fs.FileInfo) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok && p.timer.Stop() {
		w.wg.Done()
	}
	p := &pendingFile{size: info.Size(), modTime: info.ModTime()}
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.settle, func() { w.settled(path) })
	w.pending[path] = p
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

// settled runs when a settle timer fires.
func (w *Watcher) settled(path string) {
	defer w.wg.Done()

	w.mu.Lock()
	p, ok := w.pending[path]
	ctx := w.ctx
	if !ok {
		w.mu.Unlock()
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.mu.Unlock()
		w.remove(path)
		return
	}
	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		// still changing
		p.size, p.modTime = info.Size(), info.ModTime()
		w.wg.Add(1)
		p.timer = time.AfterFunc(w.settle, func() { w.settled(path) })
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	if err := w.scan.ScanFile(ctx, path); err != nil {
		w.logger.Warn("extract failed", "path", path, "error", err)
		return
	}
	w.logger.Info("catalogued", "path", path)
}

func (w *Watcher) remove(path string) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	if err := w.cat.Delete(ctx, path); err != nil {
		w.logger.Warn("failed to remove from catalog", "path", path, "error", err)
		return
	}
	w.logger.Debug("removed", "path", path)
}
