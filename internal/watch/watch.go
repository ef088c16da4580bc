// Package watch turns reference files dropped into a directory into batch
// runs.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler processes one settled reference file
type Handler func(ctx context.Context, path string) error

// DefaultSettle is how long a file must stay unchanged before it is handled
const DefaultSettle = 500 * time.Millisecond

var supportedExtensions = []string{".txt", ".list", ".csv", ".xlsx"}

// Watcher monitors one directory
type Watcher struct {
	dir     string
	handler Handler
	logger  *zap.Logger
	settle  time.Duration
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
}

// New starts watching dir. Call Run to handle events and Close when done.
func New(dir string, handler Handler, settle time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dir:     dir,
		handler: handler,
		logger:  logger,
		settle:  settle,
		watcher: fw,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 16),
	}, nil
}

// Run handles files until ctx is done. Files are handled one at a time in
// the order they settle.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Watching for reference files",
		zap.String("dir", w.dir),
		zap.Strings("extensions", supportedExtensions))

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info("Watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsReferenceFile(event.Name) {
				w.logger.Debug("Ignoring file", zap.String("path", event.Name))
				continue
			}
			w.schedule(event.Name)

		case path := <-w.ready:
			w.logger.Info("Reference file detected", zap.String("path", path))
			if err := w.handler(ctx, path); err != nil {
				w.logger.Error("Failed to handle reference file", zap.String("path", path), zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

// schedule (re)starts the settle timer of path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ready <- path
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.watcher.Close()
}

// IsReferenceFile reports whether path has a reference list extension.
// Hidden and temporary files are skipped.
func IsReferenceFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, supported := range supportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
