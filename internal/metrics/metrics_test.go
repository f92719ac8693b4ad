package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestCollectors(t *testing.T) {
	Init()
	Init()

	done := RunStarted()
	if body := scrape(t); !strings.Contains(body, "mtreport_runs_inflight 1") {
		t.Fatal("in-flight run not exported")
	}
	done()

	IncRun("success")
	AddSpliced(3)
	IncMissing("pdf")
	ObservePages(12)
	ObserveStage("render", 2*time.Second)

	body := scrape(t)
	for _, want := range []string{
		"mtreport_runs_inflight 0",
		`mtreport_runs_total{result="success"} 1`,
		"mtreport_pages_spliced_total 3",
		`mtreport_missing_attachments_total{kind="pdf"} 1`,
		`mtreport_run_duration_seconds_count{stage="render"} 1`,
		"mtreport_report_pages_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}
