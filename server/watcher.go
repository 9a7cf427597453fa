package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher monitors the file store and clears the server caches when a
// page or component document changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	server  *Server
	root    string
	log     zerolog.Logger

	// Track last change time to debounce rapid changes
	mu         sync.Mutex
	lastChange time.Time
	changeSeq  uint64
}

// NewWatcher creates a file watcher for the store directory root.
func NewWatcher(s *Server, root string, log zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher: fsWatcher,
		server:  s,
		root:    root,
		log:     log.With().Str("component", "watcher").Logger(),
	}, nil
}

// Start begins watching for file changes
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watchDirRecursive(w.root); err != nil {
		return err
	}
	w.log.Info().Str("dir", w.root).Msg("watching store")

	go w.eventLoop(ctx)
	return nil
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			// Skip hidden directories
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// eventLoop processes file system events
func (w *Watcher) eventLoop(ctx context.Context) {
	// Debounce duration - wait for rapid changes to settle
	const debounce = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			// New subdirectories are watched too
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.watchDirRecursive(event.Name)
					continue
				}
			}

			w.mu.Lock()
			if time.Since(w.lastChange) < debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = time.Now()
			w.mu.Unlock()

			w.handleFileChange(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// handleFileChange clears the caches when path is a store document.
// It reports whether the caches were cleared.
func (w *Watcher) handleFileChange(path string) bool {
	if !isStoreDocument(path) {
		return false
	}

	w.server.ClearCaches()

	w.mu.Lock()
	w.changeSeq++
	w.mu.Unlock()

	w.log.Info().Str("path", path).Msg("document changed, caches cleared")
	return true
}

func isStoreDocument(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ChangeSeq returns the number of changes that cleared the caches.
func (w *Watcher) ChangeSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
