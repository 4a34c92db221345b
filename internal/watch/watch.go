// Package watch reports ZIP archives that appear in a directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"
)

// DefaultSettle is how long a file must stay quiet before it is handed off.
const DefaultSettle = 2 * time.Second

// Handler is called once per settled archive. Calls are sequential.
type Handler func(ctx context.Context, path string)

// Watcher debounces filesystem events for *.zip files in one directory.
type Watcher struct {
	dir      string
	settle   time.Duration
	existing bool
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	handled map[string]time.Time // path -> mod time already handed off
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets the quiet period before an archive is handed off.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		w.settle = d
	}
}

// WithExisting also hands off archives already present at start.
func WithExisting(b bool) Option {
	return func(w *Watcher) {
		w.existing = b
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New returns a Watcher for dir.
func New(dir string, opts ...Option) (*Watcher, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("watch dir: %s is not a directory", dir)
	}
	w := &Watcher{
		dir:     dir,
		settle:  DefaultSettle,
		timers:  make(map[string]*time.Timer),
		handled: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w, nil
}

func isArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

// Run watches until ctx is cancelled, calling handle for each archive that
// was created or rewritten and then left alone for the settle period.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watch.start", "dir", w.dir, "settle", w.settle)

	ready := make(chan string, 64)
	defer w.stopTimers()

	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("list %s: %w", w.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isArchive(e.Name()) {
				w.schedule(ctx, filepath.Join(w.dir, e.Name()), 0, ready)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case event, ok := <-fw.Events:
				if !ok {
					return nil
				}
				if event.Has(fsnotify.Chmod) || !isArchive(event.Name) {
					continue
				}
				switch {
				case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
					w.logger.Debug("watch.event", "op", event.Op.String(), "path", event.Name)
					w.schedule(gctx, event.Name, w.settle, ready)
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					w.cancel(event.Name)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return nil
				}
				w.logger.Warn("watch.error", "error", err)
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case path := <-ready:
				if w.claim(path) {
					handle(gctx, path)
				}
			}
		}
	})
	err = g.Wait()
	w.logger.Info("watch.stop", "dir", w.dir)
	return err
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, after time.Duration, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(after, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	delete(w.handled, path)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
}

// claim reports whether path has changed since it was last handed off.
func (w *Watcher) claim(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.handled[path]; ok && prev.Equal(fi.ModTime()) {
		return false
	}
	w.handled[path] = fi.ModTime()
	return true
}
