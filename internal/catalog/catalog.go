// Package catalog stores extracted metadata in SQLite, keyed by file path,
// so that repeated scans only extract files that changed.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/simonhull/metastream/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned by Get for a path not in the catalog.
var ErrNotFound = errors.New("catalog: not found")

// Entry is one catalogued file.
type Entry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	Format    string    `json:"format"`
	Title     string    `json:"title,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	Album     string    `json:"album,omitempty"`
	Track     int       `json:"track,omitempty"`
	Year      int       `json:"year,omitempty"`
	LengthMS  int64     `json:"length_ms,omitempty"`
	HasArt    bool      `json:"has_art"`
	ArtMIME   string    `json:"art_mime,omitempty"`
	Warnings  int       `json:"warnings,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// NewEntry builds an Entry from an extraction result and the file's stat
// data.
func NewEntry(path string, size int64, mtime time.Time, md *types.Metadata) Entry {
	return Entry{
		Path:     path,
		Size:     size,
		ModTime:  mtime,
		Format:   md.Format.String(),
		Title:    md.Title,
		Artist:   md.Artist,
		Album:    md.Album,
		Track:    md.Track,
		Year:     md.Year,
		LengthMS: md.LengthMS,
		HasArt:   md.HasAlbumArt(),
		ArtMIME:  md.AlbumArtMIME,
		Warnings: len(md.Warnings),
	}
}

// Catalog is a SQLite-backed metadata store. It is safe for concurrent use.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at dsn. A file path has its
// parent directory created; ":memory:" opens a private in-memory catalog.
func Open(ctx context.Context, dsn string) (*Catalog, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert inserts or replaces the entry for e.Path. A zero ScannedAt is
// set to the current time.
func (c *Catalog) Upsert(ctx context.Context, e Entry) error {
	if e.ScannedAt.IsZero() {
		e.ScannedAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO tracks (path, size, mtime, format, title, artist, album, track, year,
			length_ms, has_art, art_mime, warnings, scanned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime = excluded.mtime,
			format = excluded.format,
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			track = excluded.track,
			year = excluded.year,
			length_ms = excluded.length_ms,
			has_art = excluded.has_art,
			art_mime = excluded.art_mime,
			warnings = excluded.warnings,
			scanned_at = excluded.scanned_at`,
		e.Path, e.Size, e.ModTime.UnixNano(), e.Format, e.Title, e.Artist, e.Album, e.Track, e.Year,
		e.LengthMS, e.HasArt, e.ArtMIME, e.Warnings, e.ScannedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Path, err)
	}
	return nil
}

const selectColumns = `SELECT path, size, mtime, format, title, artist, album, track, year,
	length_ms, has_art, art_mime, warnings, scanned_at FROM tracks`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e              Entry
		mtime, scanned int64
	)
	err := row.Scan(&e.Path, &e.Size, &mtime, &e.Format, &e.Title, &e.Artist, &e.Album,
		&e.Track, &e.Year, &e.LengthMS, &e.HasArt, &e.ArtMIME, &e.Warnings, &scanned)
	if err != nil {
		return e, err
	}
	e.ModTime = time.Unix(0, mtime)
	e.ScannedAt = time.Unix(0, scanned)
	return e, nil
}

// Get returns the entry for path, or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, path string) (Entry, error) {
	e, err := scanEntry(c.db.QueryRowContext(ctx, selectColumns+` WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", path, err)
	}
	return e, nil
}

// Fresh reports whether path is catalogued with the given size and
// modification time, meaning it need not be extracted again.
func (c *Catalog) Fresh(ctx context.Context, path string, size int64, mtime time.Time) (bool, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracks WHERE path = ? AND size = ? AND mtime = ?`,
		path, size, mtime.UnixNano(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", path, err)
	}
	return n > 0, nil
}

// Delete removes path from the catalog. Deleting an absent path is not an
// error.
func (c *Catalog) Delete(ctx context.Context, path string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM tracks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// List returns every entry ordered by artist, album, track and path.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, selectColumns+` ORDER BY artist, album, track, path`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
