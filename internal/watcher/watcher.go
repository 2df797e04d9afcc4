// Package watcher reports settled changes to run input files.
//
// Editors and extractors often write a file in several steps (truncate,
// write, rename over). Each watched file waits SettleDelay after its last
// change, and until its size and mtime stop moving, before one event fires.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a fixed set of files.
type Watcher struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	files   map[string]bool // watched path -> exists
	dirs    map[string]bool
	pending map[string]*pendingEvent
	stopped bool

	events   chan Event
	errors   chan error
	done     chan struct{}
	stopOnce sync.Once
}

// pendingEvent tracks a file that may still be changing.
type pendingEvent struct {
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  logger,
		opts:    opts,
		watcher: fw,
		files:   make(map[string]bool),
		dirs:    make(map[string]bool),
		pending: make(map[string]*pendingEvent),
		events:  make(chan Event, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a file. Its parent directory is watched so that atomic
// replacement (write to temp, rename over) is seen.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	info, err := os.Stat(abs)
	if err == nil && info.IsDir() {
		return fmt.Errorf("watch %s: is a directory", abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
		w.logger.Debug("added watch", "dir", dir)
	}
	w.files[abs] = err == nil
	return nil
}

// Start processes events until ctx is canceled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watch error dropped", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, watched := w.files[path]; !watched || w.stopped {
		return
	}

	switch {
	case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
		w.startSettling(path)
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// A rename-over shows up as Rename followed by Create; settling
		// decides whether the file is really gone.
		w.startSettling(path)
	}
}

// startSettling (re)arms the settle timer for path. Caller holds w.mu.
func (w *Watcher) startSettling(path string) {
	p, ok := w.pending[path]
	if ok {
		p.timer.Stop()
	} else {
		p = &pendingEvent{}
		w.pending[path] = p
	}

	p.size, p.modTime = -1, time.Time{}
	if info, err := os.Stat(path); err == nil {
		p.size, p.modTime = info.Size(), info.ModTime()
	}
	p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
}

func (w *Watcher) checkSettled(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[path]
	if !ok || w.stopped {
		return
	}

	existed := w.files[path]
	info, err := os.Stat(path)
	if err != nil {
		delete(w.pending, path)
		w.files[path] = false
		if existed {
			w.emit(Event{Type: EventRemoved, Path: path})
		}
		return
	}

	if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
		p.size, p.modTime = info.Size(), info.ModTime()
		p.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.checkSettled(path) })
		return
	}

	delete(w.pending, path)
	w.files[path] = true

	typ := EventModified
	if !existed {
		typ = EventAdded
	}
	w.emit(Event{Type: typ, Path: path, Size: info.Size(), ModTime: info.ModTime()})
}

// emit sends an event. Caller holds w.mu.
func (w *Watcher) emit(event Event) {
	w.logger.Debug("input changed", "path", event.Path, "type", event.Type.String())
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Events returns the channel of settled changes. It is never closed;
// readers should also watch their context.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop releases the watcher and makes Start return.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		// Unblock any emit waiting on a full channel before taking the lock.
		close(w.done)

		w.mu.Lock()
		w.stopped = true
		for _, p := range w.pending {
			p.timer.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}
