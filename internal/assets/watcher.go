package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/internal/logger"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Watcher invalidates cached assets when files in the loose asset
// directories change.
type Watcher struct {
	watcher  *fsnotify.Watcher
	m        *Manager
	streamer *Streamer
	roots    []string
	debounce time.Duration

	// OnChange is called with the slash-separated asset path of a
	// changed file after its cache entry has been dropped.
	OnChange func(name string)
	// OnError is called for watcher errors.
	OnError func(err error)
}

// NewWatcher creates a watcher over the directories of m. streamer may be
// nil.
func NewWatcher(m *Manager, streamer *Streamer, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsWatcher,
		m:        m,
		streamer: streamer,
		debounce: debounce,
	}
	for _, dir := range m.Dirs() {
		if err := w.add(dir); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// add watches root and every directory below it.
func (w *Watcher) add(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	w.roots = append(w.roots, abs)
	_, err = w.watchTree(abs)
	return err
}

// watchTree watches dir and every directory below it and returns the files
// found on the way.
func (w *Watcher) watchTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch directory: %w", err)
		}
		return nil
	})
	return files, err
}

// assetName maps an absolute file path to its asset path.
func (w *Watcher) assetName(p string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), true
	}
	return "", false
}

// Run starts the watch loop. Blocks until context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	timers := make(map[string]*time.Timer)
	var timerMu sync.Mutex
	defer func() {
		timerMu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		timerMu.Unlock()
	}()

	// Debounce rapid changes
	schedule := func(abs string) {
		name, ok := w.assetName(abs)
		if !ok {
			return
		}
		timerMu.Lock()
		if t, exists := timers[name]; exists {
			t.Stop()
		}
		timers[name] = time.AfterFunc(w.debounce, func() {
			w.handleChange(name)
		})
		timerMu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, ok := w.assetName(abs); !ok {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(abs); err == nil && st.IsDir() {
					// Files may land in the new directory before it is watched.
					files, err := w.watchTree(abs)
					if err != nil {
						logger.Warn("failed to watch new directory",
							zap.String("path", abs), zap.Error(err))
					}
					for _, f := range files {
						schedule(f)
					}
					continue
				}
			}
			schedule(abs)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("asset watcher error", zap.Error(err))
			if w.OnError != nil {
				w.OnError(err)
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleChange(name string) {
	w.m.Invalidate(name)
	if w.streamer != nil {
		if ds, ok := datasetName(name); ok {
			w.streamer.Forget(ds)
		}
	}
	logger.Info("asset changed", zap.String("path", name))
	if w.OnChange != nil {
		w.OnChange(name)
	}
}

// datasetName returns the dataset a file belongs to.
func datasetName(name string) (string, bool) {
	ext := path.Ext(name)
	switch ext {
	case facefx.ExtActor, facefx.ExtBones, facefx.ExtIDs:
		return strings.TrimSuffix(name, ext), true
	}
	return "", false
}
