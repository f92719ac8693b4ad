// Package orchestrator exposes report generation as an HTTP job API.
package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/limiter"
	"github.com/local/mtreport/internal/metrics"
	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/report"
	"github.com/local/mtreport/internal/statuscheck"
	"github.com/local/mtreport/internal/store"
)

// Runner produces a delivery archive for one project.
type Runner interface {
	Run(ctx context.Context, proj project.Project, progress report.Progress) (*report.Result, error)
}

type Dependencies struct {
	Runner  Runner
	Status  store.StatusStore
	Gate    *limiter.Gate
	Checker *statuscheck.Checker
	// Web is mounted under /web when set.
	Web http.Handler
}

type Config struct {
	// JobsDir holds one directory per job with its uploads and output.
	JobsDir     string
	MaxUploadMB int64
	// JobTimeout bounds a single run; zero means no limit.
	JobTimeout time.Duration
}

type Orchestrator struct {
	deps   Dependencies
	cfg    Config
	router chi.Router

	// base is cancelled by Shutdown; running jobs derive from it.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Dependencies, cfg Config) *Orchestrator {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 512
	}
	if cfg.JobsDir == "" {
		cfg.JobsDir = filepath.Join("data", "jobs")
	}
	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{deps: deps, cfg: cfg, base: base, cancel: cancel}
	o.setupRoutes()
	return o
}

func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.router.ServeHTTP(w, r)
}

func (o *Orchestrator) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/status", o.handleStatusSummary)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/reports", func(r chi.Router) {
		r.Post("/", o.handleSubmit)
		r.Get("/{jobID}", o.handleProgress)
		r.Get("/{jobID}/download", o.handleDownload)
	})

	if o.deps.Web != nil {
		r.Mount("/web", o.deps.Web)
	}
	o.router = r
}

// Shutdown cancels running jobs and waits for them to record their outcome.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) handleStatusSummary(w http.ResponseWriter, r *http.Request) {
	if o.deps.Checker == nil {
		jsonError(w, "status checks disabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o.deps.Checker.Summary(r.Context()))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
