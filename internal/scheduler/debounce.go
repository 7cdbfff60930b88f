package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

// DefaultDelay is the quiet period used when Schedule is given zero.
const DefaultDelay = 800 * time.Millisecond

type entry struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer runs functions after a per-key quiet period.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*entry
	gen     uint64
	stopped bool

	logger  *slog.Logger
	metrics *metric.Registry
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithLogger sets the debouncer logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Debouncer) { d.logger = l }
}

// WithMetrics records scheduling counters.
func WithMetrics(m *metric.Registry) Option {
	return func(d *Debouncer) { d.metrics = m }
}

// New creates a Debouncer.
func New(opts ...Option) *Debouncer {
	d := &Debouncer{
		pending: make(map[string]*entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Schedule arranges for fn to run after delay unless key is scheduled
// again first. It reports false once the Debouncer has been stopped.
func (d *Debouncer) Schedule(key string, fn func(), delay time.Duration) bool {
	if delay <= 0 {
		delay = DefaultDelay
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	collapsed := false
	if e, ok := d.pending[key]; ok {
		e.timer.Stop()
		collapsed = true
	}

	d.gen++
	gen := d.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(delay, func() { d.fire(key, gen, fn) })
	d.pending[key] = e

	d.metrics.IncDebounceScheduled(collapsed)
	return true
}

// fire runs fn if gen is still the current generation for key. A timer
// that lost the race against a reschedule or Stop does nothing.
func (d *Debouncer) fire(key string, gen uint64, fn func()) {
	d.mu.Lock()
	e, ok := d.pending[key]
	if !ok || e.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	d.metrics.IncDebounceFired()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("debounced function panicked", "key", key, "panic", r)
		}
	}()
	fn()
}

// Cancel drops the pending run for key and reports whether one existed.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(d.pending, key)
	d.metrics.AddDebounceDiscarded(1)
	return true
}

// Pending reports whether key has a run scheduled.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len returns the number of keys with a run scheduled.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending run without executing it and returns how
// many were dropped. Later calls to Schedule are ignored.
func (d *Debouncer) Stop() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return 0
	}
	d.stopped = true

	n := len(d.pending)
	for key, e := range d.pending {
		e.timer.Stop()
		delete(d.pending, key)
	}
	d.metrics.AddDebounceDiscarded(n)
	if n > 0 {
		d.logger.Warn("discarded pending debounced runs", "count", n)
	}
	return n
}
