// Package templates indexes seed templates on disk. A template's id is its
// file name without the .md extension; the index rescans when the directory
// changes.
package templates

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Index maps template ids to file paths under a single directory.
type Index struct {
	dir string

	mu   sync.RWMutex
	byID map[string]string
}

// New seeds the built-in templates and builds the index from dir.
func New(dir string) (*Index, error) {
	created, err := EnsureDefaults(dir)
	if err != nil {
		return nil, err
	}
	if len(created) > 0 {
		slog.Info("seeded default templates", "files", created)
	}
	idx := &Index{dir: dir, byID: make(map[string]string)}
	if err := idx.rescan(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Lookup returns the file path for a template id.
func (idx *Index) Lookup(id string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	path, ok := idx.byID[id]
	return path, ok
}

// IDs returns all known template ids, sorted.
func (idx *Index) IDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.byID))
	for id := range idx.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (idx *Index) rescan() error {
	entries, err := os.ReadDir(idx.dir)
	if err != nil {
		return err
	}
	byID := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".md")
		byID[id] = filepath.Join(idx.dir, e.Name())
	}

	idx.mu.Lock()
	idx.byID = byID
	idx.mu.Unlock()
	return nil
}

// Watch rescans the directory on filesystem changes, debounced, until ctx
// is cancelled. Watch failures degrade to the initial scan only.
func (idx *Index) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("template watcher init failed", "error", err)
		return
	}
	if err := watcher.Add(idx.dir); err != nil {
		slog.Warn("cannot watch template dir", "dir", idx.dir, "error", err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		const debounce = 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
					event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(debounce, func() {
						if err := idx.rescan(); err != nil {
							slog.Warn("template rescan failed", "error", err)
							return
						}
						slog.Info("template index reloaded", "count", len(idx.IDs()))
					})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Error("template watcher error", "error", err)
			}
		}
	}()
}
