package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mtreport"

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Report runs by result (success, invalid_input, failed)",
		},
		[]string{"result"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of report pipeline stages",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	reportPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_pages",
			Help:      "Physical pages of the final report",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
		},
	)

	pagesSpliced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_spliced_total",
			Help:      "Pages reserved for embedded attachments",
		},
	)

	missingAttachments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_attachments_total",
			Help:      "Attachments skipped at render or splice time, by kind (image, pdf)",
		},
		[]string{"kind"},
	)

	runsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_inflight",
			Help:      "Report runs currently executing",
		},
	)

	registerOnce sync.Once
)

// Init registers collectors. It is safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runsTotal, runDuration, reportPages, pagesSpliced, missingAttachments, runsInflight)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncRun(result string) { runsTotal.WithLabelValues(result).Inc() }

func ObserveStage(stage string, d time.Duration) {
	runDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func ObservePages(n int)     { reportPages.Observe(float64(n)) }
func AddSpliced(n int)       { pagesSpliced.Add(float64(n)) }
func IncMissing(kind string) { missingAttachments.WithLabelValues(kind).Inc() }

// RunStarted marks a run in flight and returns the func that ends it.
func RunStarted() func() {
	runsInflight.Inc()
	return runsInflight.Dec
}
