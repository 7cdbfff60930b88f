package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.SavesTotal == nil || r.StoreOpsTotal == nil || r.RequestDuration == nil {
		t.Error("metric fields should be initialised")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler(t *testing.T) {
	body := scrape(t, Global())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestSaveMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordSave("ok", 0.02, 12, 4096)
	r.RecordSave("ok", 0.01, 10, 2048)
	r.RecordSave("failed", 0.5, 99, 1)

	body := scrape(t, r)

	if !strings.Contains(body, `wsnap_saves_total{result="ok"} 2`) {
		t.Error(`expected wsnap_saves_total{result="ok"} 2`)
	}
	if !strings.Contains(body, `wsnap_saves_total{result="failed"} 1`) {
		t.Error(`expected wsnap_saves_total{result="failed"} 1`)
	}
	// Failed saves must not overwrite the last good snapshot size.
	if !strings.Contains(body, "wsnap_snapshot_files 10") {
		t.Error("expected wsnap_snapshot_files 10")
	}
	if !strings.Contains(body, "wsnap_save_duration_seconds_count 3") {
		t.Error("expected wsnap_save_duration_seconds_count 3")
	}
}

func TestRestoreMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordRestore("local", "ok", 5, 1)
	r.RecordRestore("mirror", "not_found", 0, 0)

	body := scrape(t, r)

	if !strings.Contains(body, `wsnap_restores_total{result="ok",source="local"} 1`) {
		t.Error("expected local ok restore")
	}
	if !strings.Contains(body, `wsnap_restore_files_total{outcome="written"} 5`) {
		t.Error("expected 5 written files")
	}
	if !strings.Contains(body, `wsnap_restore_files_total{outcome="failed"} 1`) {
		t.Error("expected 1 failed file")
	}
}

func TestDebounceMetrics(t *testing.T) {
	r := NewRegistry()

	r.IncDebounceScheduled(false)
	r.IncDebounceScheduled(true)
	r.IncDebounceScheduled(true)
	r.IncDebounceFired()
	r.AddDebounceDiscarded(2)

	body := scrape(t, r)

	for _, want := range []string{
		"wsnap_debounce_scheduled_total 3",
		"wsnap_debounce_collapsed_total 2",
		"wsnap_debounce_fired_total 1",
		"wsnap_debounce_discarded_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestOperationMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordStoreOp("put", "ok")
	r.RecordStoreOp("get", "not_found")
	r.RecordMirrorOp("upsert", "failed")
	r.RecordHealPatch("lucide_icon")
	r.RecordLaunch("ok")
	r.RecordRequest("GET", "/v1/snapshots", "200")
	r.ObserveRequestDuration("GET", "/v1/snapshots", 0.003)

	body := scrape(t, r)

	for _, want := range []string{
		`wsnap_store_ops_total{op="put",result="ok"} 1`,
		`wsnap_store_ops_total{op="get",result="not_found"} 1`,
		`wsnap_mirror_ops_total{op="upsert",result="failed"} 1`,
		`wsnap_heal_patches_total{rule="lucide_icon"} 1`,
		`wsnap_launches_total{result="ok"} 1`,
		`wsnap_requests_total{method="GET",route="/v1/snapshots",status="200"} 1`,
		"wsnap_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// Must not panic.
	r.RecordSave("ok", 1, 1, 1)
	r.RecordRestore("local", "ok", 1, 0)
	r.RecordStoreOp("put", "ok")
	r.RecordMirrorOp("fetch", "ok")
	r.RecordLaunch("ok")
	r.RecordHealPatch("x")
	r.IncDebounceScheduled(true)
	r.IncDebounceFired()
	r.AddDebounceDiscarded(1)
	r.RecordRequest("GET", "/", "200")
	r.ObserveRequestDuration("GET", "/", 0.1)

	if r.Prometheus() != nil {
		t.Error("nil registry should expose no prometheus registry")
	}

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil registry handler status = %d, want 404", rec.Code)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				r.RecordSave("ok", 0.001, 3, 30)
				r.IncDebounceScheduled(j%2 == 0)
				r.RecordRequest("GET", "/health", "200")
				r.ObserveRequestDuration("GET", "/health", 0.001)
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if !strings.Contains(scrape(t, r), `wsnap_saves_total{result="ok"} 1000`) {
		t.Error(`expected wsnap_saves_total{result="ok"} 1000`)
	}
}
