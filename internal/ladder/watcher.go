package ladder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reparses ladder files when they change on disk
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	loader      *Loader
	dir         string
	pending     map[string]fsnotify.Op
	debounceDur time.Duration
	onChange    func(id string)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the ladders directory
func NewWatcher(dir string, loader *Loader) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	return &Watcher{
		watcher:     fw,
		loader:      loader,
		dir:         dir,
		pending:     make(map[string]fsnotify.Op),
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// OnChange registers a callback invoked with the ladder id after every reload or removal
func (w *Watcher) OnChange(fn func(id string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start begins watching in a goroutine
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		if cerr := w.watcher.Close(); cerr != nil {
			slog.Error("failed to close ladder watcher", "error", cerr)
		}
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	slog.Info("ladder watcher started", "dir", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		slog.Error("failed to close ladder watcher", "error", err)
	}
	slog.Info("ladder watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounceDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.record(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("ladder watcher error", "error", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

// record batches events per path; rapid editor saves collapse into one reload
func (w *Watcher) record(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if !strings.HasSuffix(base, ".md") && base != ManifestFile {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] |= event.Op
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	onChange := w.onChange
	w.mu.Unlock()

	for path, op := range batch {
		if filepath.Base(path) == ManifestFile {
			slog.Info("ladder manifest changed, reloading catalog", "path", path)
			if err := w.loader.LoadFromDir(w.dir); err != nil {
				slog.Error("failed to reload ladders", "error", err)
			}
			continue
		}

		id := IDFromPath(path)
		if err := w.loader.LoadFromFile(path); err != nil {
			if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.loader.Remove(id)
				slog.Info("ladder removed", "id", id)
			} else {
				slog.Warn("failed to reload ladder", "path", path, "error", err)
				continue
			}
		}

		if onChange != nil {
			onChange(id)
		}
	}
}
