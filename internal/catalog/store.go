package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cindergrace/depot/internal/ui"
)

// Store holds the current catalog behind a pointer swap. Readers always see
// a complete catalog; a failed reload leaves the previous one in place.
type Store struct {
	mu       sync.RWMutex
	cat      *Catalog
	source   string
	onReload []func(*Catalog)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the active catalog, or nil when none has loaded yet.
func (s *Store) Current() *Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat
}

// Source returns the path of the last successfully loaded document.
func (s *Store) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// OnReload registers fn to run after every successful catalog swap. Used by
// the resolver to drop its status cache.
func (s *Store) OnReload(fn func(*Catalog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, fn)
}

// LoadFile reads, validates and installs a catalog document. On any error
// the previous catalog stays active.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}

	cat, err := Load(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cat = cat
	s.source = path
	hooks := append(([]func(*Catalog))(nil), s.onReload...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(cat)
	}
	return nil
}

// Watch reloads the document whenever it changes on disk, until ctx is
// cancelled. Reload failures are logged and the active catalog is kept.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors and atomic writers replace
	// the file, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if err := s.LoadFile(path); err != nil {
				ui.Warn("catalog reload failed, keeping previous catalog", "path", path, "err", err)
				continue
			}
			ui.Info("catalog reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ui.Warn("catalog watcher error", "err", err)
		}
	}
}
