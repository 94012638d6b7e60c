package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Track is one indexed media file.
type Track struct {
	Path     string `json:"path"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Genre    string `json:"genre,omitempty"`
	Duration int64  `json:"duration,omitempty"` // seconds
	ModTime  int64  `json:"-"`                  // unix seconds, scanner bookkeeping
}

// ErrNotFound is returned when a path is not in the index.
var ErrNotFound = errors.New("library: track not found")

// Store owns the SQLite media index.
type Store struct {
	db   *sql.DB
	path string
}

// Path returns the underlying SQLite file path.
func (s *Store) Path() string {
	return s.path
}

// Open initializes a SQLite database at path. Call Init before use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init ensures pragmas and schema are configured.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("nil store")
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, stmt := range pragmas {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return s.applySchema(ctx)
}

func (s *Store) applySchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO meta(key,value) VALUES ('schemaVersion','1');`,
		`CREATE TABLE IF NOT EXISTS tracks (
			path TEXT PRIMARY KEY,
			dir TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			mod_time INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_dir ON tracks(dir);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_title_nocase ON tracks(title COLLATE NOCASE);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_artist_nocase ON tracks(artist COLLATE NOCASE);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts or replaces one track, keyed by path.
func (s *Store) Upsert(ctx context.Context, t Track) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks(path, dir, title, artist, album, genre, duration, mod_time)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			genre = excluded.genre,
			duration = excluded.duration,
			mod_time = excluded.mod_time;
	`, t.Path, filepath.Dir(t.Path), t.Title, t.Artist, t.Album, t.Genre, t.Duration, t.ModTime)
	return err
}

// Remove deletes one track. Removing an unknown path is not an error.
func (s *Store) Remove(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE path = ?`, path)
	return err
}

// RemoveDir deletes every track under dir, including subdirectories.
func (s *Store) RemoveDir(ctx context.Context, dir string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE dir = ? OR dir LIKE ?`,
		dir, dir+string(filepath.Separator)+"%")
	return err
}

// Get fetches one track by path. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, path string) (Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, title, artist, album, genre, duration, mod_time
		FROM tracks WHERE path = ?;
	`, path)
	var t Track
	err := row.Scan(&t.Path, &t.Title, &t.Artist, &t.Album, &t.Genre, &t.Duration, &t.ModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Track{}, ErrNotFound
	}
	if err != nil {
		return Track{}, err
	}
	return t, nil
}

// ModTime reports the recorded modification time for path, with ok false
// when the path is not indexed. The scanner uses it to skip unchanged files.
func (s *Store) ModTime(ctx context.Context, path string) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT mod_time FROM tracks WHERE path = ?`, path)
	var mt int64
	err := row.Scan(&mt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return mt, true, nil
}

// ListDir returns the tracks directly inside dir, ordered by path.
func (s *Store) ListDir(ctx context.Context, dir string) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, title, artist, album, genre, duration, mod_time
		FROM tracks WHERE dir = ? ORDER BY path;
	`, dir)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Search returns tracks whose title, artist or album contains query,
// case-insensitively, ordered by path.
func (s *Store) Search(ctx context.Context, query string) ([]Track, error) {
	like := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, title, artist, album, genre, duration, mod_time
		FROM tracks
		WHERE title LIKE ? ESCAPE '\' COLLATE NOCASE
		   OR artist LIKE ? ESCAPE '\' COLLATE NOCASE
		   OR album LIKE ? ESCAPE '\' COLLATE NOCASE
		ORDER BY path;
	`, like, like, like)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Count reports the number of indexed tracks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`)
	var n int64
	err := row.Scan(&n)
	return n, err
}

func collect(rows *sql.Rows) ([]Track, error) {
	defer rows.Close()
	var out []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.Path, &t.Title, &t.Artist, &t.Album, &t.Genre, &t.Duration, &t.ModTime); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
