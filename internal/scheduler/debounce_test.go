package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
	"github.com/AgenciaV10/wsnap/internal/telemetry/metric"
)

const testDelay = 40 * time.Millisecond

func newTestDebouncer(t *testing.T, opts ...Option) *Debouncer {
	t.Helper()
	d := New(append([]Option{WithLogger(logger.Discard())}, opts...)...)
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestDebouncer_BurstRunsOnce(t *testing.T) {
	d := newTestDebouncer(t)

	var calls atomic.Int32
	done := make(chan struct{}, 1)
	for i := 0; i < 10; i++ {
		d.Schedule("chat-1", func() {
			calls.Add(1)
			done <- struct{}{}
		}, testDelay)
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never ran")
	}
	time.Sleep(3 * testDelay)

	if got := calls.Load(); got != 1 {
		t.Errorf("burst ran %d times, want 1", got)
	}
	if d.Pending("chat-1") {
		t.Error("key still pending after run")
	}
}

func TestDebouncer_LastScheduledWins(t *testing.T) {
	d := newTestDebouncer(t)

	got := make(chan int, 2)
	d.Schedule("k", func() { got <- 1 }, testDelay)
	d.Schedule("k", func() { got <- 2 }, testDelay)

	select {
	case v := <-got:
		if v != 2 {
			t.Errorf("ran function %d, want the last scheduled", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestDebouncer_KeysIndependent(t *testing.T) {
	d := newTestDebouncer(t)

	var wg sync.WaitGroup
	var a, b atomic.Int32
	wg.Add(2)
	d.Schedule("a", func() { a.Add(1); wg.Done() }, testDelay)
	d.Schedule("b", func() { b.Add(1); wg.Done() }, testDelay)

	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}

	waitGroup(t, &wg)
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
}

func TestDebouncer_RescheduleRestartsDelay(t *testing.T) {
	d := newTestDebouncer(t)

	start := time.Now()
	ran := make(chan time.Time, 1)
	d.Schedule("k", func() { ran <- time.Now() }, 60*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	d.Schedule("k", func() { ran <- time.Now() }, 60*time.Millisecond)

	select {
	case at := <-ran:
		if elapsed := at.Sub(start); elapsed < 95*time.Millisecond {
			t.Errorf("ran after %v, reschedule should restart the delay", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestDebouncer_StopDiscards(t *testing.T) {
	d := newTestDebouncer(t)

	var calls atomic.Int32
	d.Schedule("a", func() { calls.Add(1) }, testDelay)
	d.Schedule("b", func() { calls.Add(1) }, testDelay)

	if n := d.Stop(); n != 2 {
		t.Errorf("Stop() = %d, want 2", n)
	}
	time.Sleep(3 * testDelay)

	if calls.Load() != 0 {
		t.Errorf("pending runs executed after Stop: %d", calls.Load())
	}
	if d.Schedule("a", func() { calls.Add(1) }, testDelay) {
		t.Error("Schedule after Stop should report false")
	}
	if n := d.Stop(); n != 0 {
		t.Errorf("second Stop() = %d, want 0", n)
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := newTestDebouncer(t)

	var calls atomic.Int32
	d.Schedule("k", func() { calls.Add(1) }, testDelay)
	if !d.Cancel("k") {
		t.Fatal("Cancel should report a pending run")
	}
	if d.Cancel("k") {
		t.Error("second Cancel should report nothing pending")
	}
	time.Sleep(3 * testDelay)
	if calls.Load() != 0 {
		t.Error("cancelled run executed")
	}
}

func TestDebouncer_DefaultDelay(t *testing.T) {
	d := newTestDebouncer(t)
	d.Schedule("k", func() {}, 0)
	if !d.Pending("k") {
		t.Fatal("zero delay should use the default, not run inline")
	}
}

func TestDebouncer_PanicRecovered(t *testing.T) {
	d := newTestDebouncer(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Schedule("boom", func() { panic("save exploded") }, testDelay)
	d.Schedule("ok", func() { wg.Done() }, 2*testDelay)
	waitGroup(t, &wg)
}

func TestDebouncer_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	d := newTestDebouncer(t, WithMetrics(reg))

	var wg sync.WaitGroup
	wg.Add(1)
	d.Schedule("k", func() {}, testDelay)
	d.Schedule("k", func() {}, testDelay)
	d.Schedule("k", func() { wg.Done() }, testDelay)
	waitGroup(t, &wg)

	d.Schedule("other", func() {}, time.Hour)
	d.Stop()

	if got := testutil.ToFloat64(reg.DebounceScheduled); got != 4 {
		t.Errorf("scheduled = %v, want 4", got)
	}
	if got := testutil.ToFloat64(reg.DebounceCollapsed); got != 2 {
		t.Errorf("collapsed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(reg.DebounceFired); got != 1 {
		t.Errorf("fired = %v, want 1", got)
	}
	if got := testutil.ToFloat64(reg.DebounceDiscarded); got != 1 {
		t.Errorf("discarded = %v, want 1", got)
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for debounced runs")
	}
}
