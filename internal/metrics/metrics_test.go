package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/subreap/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.JobStarted()
	metrics.JobStarted()
	metrics.JobExited("failed", 1500*time.Millisecond)
	metrics.OrphanReaped()
	metrics.SignalForwarded("SIGTERM")
	metrics.SignalForwarded("SIGTERM")
	metrics.Escalated("shutdown")
	metrics.SetExitCode(2)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, line := range []string{
		"subreap_jobs_running 1",
		`subreap_job_exits_total{outcome="failed"} 1`,
		"subreap_job_runtime_seconds_count 1",
		"subreap_orphans_reaped_total 1",
		`subreap_signals_forwarded_total{signal="SIGTERM"} 2`,
		`subreap_escalations_total{phase="shutdown"} 1`,
		"subreap_exit_code 2",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected metric line %q in body:\n%s", line, body)
		}
	}

	if !strings.Contains(body, "subreap_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}
