package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorsRecordAndScrape(t *testing.T) {
	c := New()
	c.RunStarted()
	c.RunFinished("passed", 2*time.Second)
	c.NodeObserved("scanner", 100*time.Millisecond)
	c.FixObserved("import", "applied")
	c.PushObserved("pushed")
	c.CIObserved("passed")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"healer_runs_total",
		"healer_run_duration_seconds",
		"healer_node_duration_seconds",
		"healer_fixes_total",
		"healer_pushes_total",
		"healer_ci_observations_total",
		"healer_active_runs",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected scrape output to contain %q", want)
		}
	}
}

func TestActiveRunsGaugeTracksStartAndFinish(t *testing.T) {
	c := New()
	c.RunStarted()
	c.RunStarted()
	c.RunFinished("failed", time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "healer_active_runs 1") {
		t.Errorf("expected active_runs=1 after one start-finish pair, got:\n%s", rec.Body.String())
	}
}
