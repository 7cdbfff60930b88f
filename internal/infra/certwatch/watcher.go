// Package certwatch serves a TLS key pair that is reloaded when the
// files on disk change.
package certwatch

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AgenciaV10/wsnap/internal/scheduler"
)

// DefaultDebounce is the quiet period before a changed pair is reloaded.
const DefaultDebounce = 500 * time.Millisecond

const reloadKey = "reload"

// Watcher watches a certificate and key file and reloads them on change.
type Watcher struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
	reloads  atomic.Int64

	debounce  time.Duration
	debouncer *scheduler.Debouncer

	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher loads the key pair and returns a watcher serving it.
func NewWatcher(certFile, keyFile string, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = scheduler.New(scheduler.WithLogger(w.logger))

	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("certwatch: initial load: %w", err)
	}
	return w, nil
}

// Start watches the parent directories of both files until Stop is
// called. Watching directories catches editors that replace files by
// rename.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("certwatch: create watcher: %w", err)
	}
	defer fw.Close()

	dirs := map[string]struct{}{
		filepath.Dir(w.certFile): {},
		filepath.Dir(w.keyFile):  {},
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("certwatch: watch %s: %w", dir, err)
		}
	}

	w.logger.Info("certificate watcher started", "cert_file", w.certFile, "key_file", w.keyFile)

	certBase := filepath.Base(w.certFile)
	keyBase := filepath.Base(w.keyFile)

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			base := filepath.Base(event.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			w.debouncer.Schedule(reloadKey, w.reloadLogged, w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)

		case <-w.done:
			return nil
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.logger.Error("certificate watcher stopped with error", "error", err)
		}
	}()
}

// Stop stops watching and drops a pending reload. Safe to call twice.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.debouncer.Stop()
	})
}

// GetCertificate returns the current certificate.
// It implements tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return w.cert.Load(), nil
}

// Reloads returns the number of successful loads, including the initial one.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// TLSConfig returns a server TLS config backed by the watcher.
func (w *Watcher) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}

func (w *Watcher) reloadLogged() {
	if err := w.reload(); err != nil {
		// Keep serving the previous pair.
		w.logger.Error("certificate reload failed", "error", err, "cert_file", w.certFile)
	}
}

func (w *Watcher) reload() error {
	cert, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	w.cert.Store(&cert)
	w.reloads.Add(1)
	w.logger.Info("certificate loaded", "cert_file", w.certFile)
	return nil
}
