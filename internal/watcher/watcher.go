// Package watcher reports image files written under the media root.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sprout/pkg/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// Handler is called once per settled file change.
type Handler func(ctx context.Context, path string)

// Watcher monitors the media root recursively. Rapid successive events
// for the same file are collapsed into one Handler call.
type Watcher struct {
	root     string
	exts     []string
	debounce time.Duration
	handle   Handler

	fs *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// New watches root for files whose extension (without dot, lowercase) is
// in exts.
func New(root string, exts []string, debounce time.Duration, h Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		exts:     exts,
		debounce: debounce,
		handle:   h,
		fs:       fsw,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start adds every directory under the root and processes events until
// ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	logger.LogInfo("Watching %s for new images", w.root)

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.process(ctx, ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.LogWarn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(ev.Name); err != nil {
				logger.LogWarn("Could not watch %s: %v", ev.Name, err)
			}
			return
		}
	}
	if !w.matches(ev.Name) {
		return
	}

	path := ev.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.timers[path]; ok && prev.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		if ctx.Err() == nil {
			w.handle(ctx, path)
		}
	})
	w.timers[path] = t
}

func (w *Watcher) matches(p string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
	return slices.Contains(w.exts, ext)
}

// Stop closes the underlying watcher and waits for pending handler calls.
func (w *Watcher) Stop() error {
	err := w.fs.Close()

	w.mu.Lock()
	for p, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, p)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}
