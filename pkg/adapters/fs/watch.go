package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/pinboard/pkg/core"
)

const (
	debounceWindow = 50 * time.Millisecond
	// selfWriteWindow is how long an event on a path this process just wrote is treated as its echo.
	selfWriteWindow = 2 * time.Second
)

// Watch observes the notes directory for edits made outside pinboard
// (text editors, git pulls) and reports them to fn.
// Watching stops when ctx is cancelled.
func (r *Repository) Watch(ctx context.Context, fn func(core.Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := r.recursiveAdd(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	r.setWatcherActive(true)
	d := newDebouncer(debounceWindow)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer r.recoverWatcher(ctx)
		defer r.setWatcherActive(false)
		defer watcher.Close()
		defer d.stopAndWait(5 * time.Second)

		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				r.handleEvent(watcher, event, d, fn)
			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				r.report(fmt.Errorf("fsnotify: %w", wErr))
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		r.report(fmt.Errorf("watcher: %w", err))
	}))
	return nil
}

func (r *Repository) recoverWatcher(ctx context.Context) {
	recovered := recover()
	if recovered == nil {
		return
	}
	if r.config.Logger.Enabled(ctx, slog.LevelDebug) {
		r.config.Logger.Error("watcher panic", "error", recovered, "stack", string(debug.Stack()))
		return
	}
	r.config.Logger.Error("watcher panic", "error", recovered)
}

func (r *Repository) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, d *debouncer, fn func(core.Event)) {
	rel, err := filepath.Rel(r.Path, event.Name)
	if err != nil || r.ignored(rel) {
		return
	}

	// New directories must be watched explicitly.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = r.recursiveAddFrom(watcher, event.Name)
			return
		}
	}

	if !strings.HasSuffix(rel, noteExt) || r.isSelfWrite(rel) {
		return
	}

	eType := mapEventType(event)
	if eType == "" {
		return
	}

	id := r.resolveID(rel, eType)
	r.config.Logger.Debug("external change", "type", eType, "id", id, "path", rel)

	d.add(id, func() {
		fn(core.Event{Type: eType, ID: id, Timestamp: time.Now().UnixMilli()})
	})
}

func mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	default:
		return ""
	}
}

// resolveID maps a changed file to a note ID. Deleted files are resolved from the index.
func (r *Repository) resolveID(rel string, eType core.EventType) string {
	key := filepath.ToSlash(rel)
	if eType == core.EventDelete {
		if entry, ok := r.cache.Take(key); ok {
			return entry.ID
		}
	} else if entry, err := r.load(rel); err == nil {
		return entry.ID
	}
	return strings.TrimSuffix(filepath.Base(rel), noteExt)
}

func (r *Repository) isSelfWrite(rel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := filepath.ToSlash(rel)
	at, ok := r.selfWrites[key]
	if !ok {
		return false
	}
	if time.Since(at) > selfWriteWindow {
		delete(r.selfWrites, key)
		return false
	}
	return true
}

func (r *Repository) recursiveAdd(watcher *fsnotify.Watcher) error {
	return r.recursiveAddFrom(watcher, r.Path)
}

func (r *Repository) recursiveAddFrom(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(r.Path, path); relErr == nil && rel != "." && r.ignored(rel) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// debouncer coalesces bursts of events per key into a single callback.
type debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(key string, fire func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timers[key] = time.AfterFunc(d.window, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			fire()
		}
	})
}

// stopAndWait drops pending callbacks and waits up to timeout for running ones.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
