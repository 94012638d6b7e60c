package library

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// mediaExts lists the file extensions the scanner indexes.
var mediaExts = map[string]bool{
	".flac": true,
	".mp3":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
}

// TagReader extracts tags from a media file. path is absolute. It fills in
// everything except Path and ModTime, which the scanner owns.
type TagReader func(path string) (Track, error)

// tagsFromName is the fallback TagReader: the title is the file name without
// its extension.
func tagsFromName(path string) (Track, error) {
	base := filepath.Base(path)
	return Track{Title: strings.TrimSuffix(base, filepath.Ext(base))}, nil
}

// Scanner walks media roots and keeps the store's index current. Between
// full scans a filesystem watcher picks up individual changes.
type Scanner struct {
	store    *Store
	roots    []string
	readTags TagReader
	log      *slog.Logger
	onUpdate func()
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithTagReader replaces the fallback filename-based tag extraction.
func WithTagReader(r TagReader) ScannerOption {
	return func(s *Scanner) { s.readTags = r }
}

// WithScanLogger sets the scanner's structured logger.
func WithScanLogger(log *slog.Logger) ScannerOption {
	return func(s *Scanner) { s.log = log }
}

// WithUpdateHook registers a function called after the index changes.
func WithUpdateHook(fn func()) ScannerOption {
	return func(s *Scanner) { s.onUpdate = fn }
}

// NewScanner builds a scanner over the given roots.
func NewScanner(store *Store, roots []string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		store:    store,
		roots:    roots,
		readTags: tagsFromName,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks every root and upserts changed files. Files whose recorded
// modification time matches the filesystem are skipped. Walk errors on
// individual entries are logged and do not abort the scan.
func (s *Scanner) Scan(ctx context.Context) error {
	return s.scan(ctx, false)
}

// Rescan performs a full scan: every file is re-read even when its recorded
// modification time is current.
func (s *Scanner) Rescan(ctx context.Context) error {
	return s.scan(ctx, true)
}

func (s *Scanner) scan(ctx context.Context, force bool) error {
	changed := false
	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				s.log.WarnContext(ctx, "scan: skipping entry",
					slog.String("path", p), slog.String("err", err.Error()))
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !mediaExts[strings.ToLower(filepath.Ext(p))] {
				return nil
			}
			did, ierr := s.indexFile(ctx, p, d, force)
			if ierr != nil {
				return ierr
			}
			changed = changed || did
			return nil
		})
		if err != nil {
			return err
		}
	}
	if changed && s.onUpdate != nil {
		s.onUpdate()
	}
	return nil
}

// indexFile upserts one file unless its mod time is already recorded.
func (s *Scanner) indexFile(ctx context.Context, path string, d fs.DirEntry, force bool) (bool, error) {
	info, err := d.Info()
	if err != nil {
		return false, nil
	}
	mt := info.ModTime().Unix()
	if !force {
		known, ok, err := s.store.ModTime(ctx, path)
		if err != nil {
			return false, err
		}
		if ok && known == mt {
			return false, nil
		}
	}

	track, terr := s.readTags(path)
	if terr != nil {
		s.log.WarnContext(ctx, "scan: tag extraction failed",
			slog.String("path", path), slog.String("err", terr.Error()))
		track = Track{}
	}
	if track.Title == "" {
		track, _ = tagsFromName(path)
	}
	track.Path = path
	track.ModTime = mt
	return true, s.store.Upsert(ctx, track)
}

// Watch blocks, applying filesystem changes to the index until ctx is done.
// Directories created under the roots are watched as they appear.
func (s *Scanner) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		// Best-effort watcher close.
		_ = w.Close()
	}()

	for _, root := range s.roots {
		if err := watchTree(w, root); err != nil {
			s.log.WarnContext(ctx, "watch: cannot add root",
				slog.String("root", root), slog.String("err", err.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if err := s.handleEvent(ctx, w, ev); err != nil {
				return err
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.WarnContext(ctx, "watch: watcher error", slog.String("err", werr.Error()))
		}
	}
}

func (s *Scanner) handleEvent(ctx context.Context, w *fsnotify.Watcher, ev fsnotify.Event) error {
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			// New directory: watch it and index its contents.
			if err := watchTree(w, ev.Name); err != nil {
				return nil
			}
			sub := NewScanner(s.store, []string{ev.Name},
				WithTagReader(s.readTags), WithScanLogger(s.log))
			if err := sub.Scan(ctx); err != nil {
				return err
			}
			s.notify()
			return nil
		}
		if !mediaExts[strings.ToLower(filepath.Ext(ev.Name))] {
			return nil
		}
		did, err := s.indexFile(ctx, ev.Name, fs.FileInfoToDirEntry(info), false)
		if err != nil {
			return err
		}
		if did {
			s.notify()
		}
		return nil

	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// The path is gone; it may have been a file or a directory.
		if err := s.store.Remove(ctx, ev.Name); err != nil {
			return err
		}
		if err := s.store.RemoveDir(ctx, ev.Name); err != nil {
			return err
		}
		s.notify()
		return nil
	}
	return nil
}

func (s *Scanner) notify() {
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

// watchTree adds root and every directory below it to the watcher.
func watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return w.Add(p)
	})
}
