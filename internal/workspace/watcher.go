package workspace

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports file mutations below a workspace root.
// Directories named in the exclusion list are not watched, and directories
// created after Start are added as they appear.
type Watcher struct {
	watcher   *fsnotify.Watcher
	root      string
	exclude   map[string]struct{}
	callbacks []func(string)
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithWatchExclude replaces the directory names that are not watched.
func WithWatchExclude(names ...string) WatcherOption {
	return func(w *Watcher) {
		w.exclude = excludeSet(names)
	}
}

// NewWatcher creates a watcher for the tree below root.
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fw,
		root:    filepath.Clean(root),
		exclude: excludeSet(DefaultExclude),
		done:    make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// OnChange registers a callback for mutations. The callback receives the
// changed path relative to the root, with forward slashes.
func (w *Watcher) OnChange(callback func(string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start processes events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("workspace watcher started", "root", w.root)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("workspace watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		if err != nil {
			w.logger.Error("failed to close workspace watcher", "error", err)
			return
		}
		w.logger.Info("workspace watcher stopped")
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	rel, ok := w.relative(event.Name)
	if !ok || w.ignored(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if err := w.addTree(event.Name); err != nil {
			w.logger.Debug("failed to watch new directory", "path", rel, "error", err)
		}
	}

	w.logger.Debug("workspace changed", "path", rel, "op", event.Op.String())
	w.notifyCallbacks(rel)
}

// addTree watches dir and every non-excluded directory below it.
// Paths that are not directories are ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.isExcluded(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Debug("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

func (w *Watcher) relative(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored reports whether any path component is an excluded name.
func (w *Watcher) ignored(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if w.isExcluded(part) {
			return true
		}
	}
	return false
}

func (w *Watcher) isExcluded(name string) bool {
	_, ok := w.exclude[name]
	return ok
}

func (w *Watcher) notifyCallbacks(rel string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, cb := range w.callbacks {
		cb(rel)
	}
}
