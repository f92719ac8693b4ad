package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/mtreport/internal/limiter"
	"github.com/local/mtreport/internal/orchestrator"
	"github.com/local/mtreport/internal/statuscheck"
	"github.com/local/mtreport/internal/store"
	"github.com/local/mtreport/internal/web"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job API",
	Long: `Start the HTTP job API and dashboard.

Endpoints:
  POST /reports                 multipart upload, returns a job id
  GET  /reports/{id}            job progress
  GET  /reports/{id}/download   delivery archive
  GET  /health, /status, /metrics
  GET  /web/                    upload dashboard

Job status lives in Redis when REDIS_URL is set, in memory otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pipeline, office, s3 := newPipeline(ctx)

		var (
			status store.StatusStore
			checks statuscheck.Options
			gate   = limiter.Options{MaxConcurrent: cfg.Server.MaxConcurrent, LockTTL: cfg.Redis.LockTTL}
		)
		if cfg.Redis.URL != "" {
			rs, err := store.NewRedisStatus(ctx, cfg.Redis.URL, cfg.Server.JobTTL)
			if err != nil {
				return err
			}
			defer rs.Close()
			status = rs
			checks.Redis = rs
			gate.Redis = rs.Client()
		} else {
			status = store.NewMemoryStatus(cfg.Server.JobTTL)
		}
		if office != nil {
			checks.Office = office
		}
		if s3 != nil {
			checks.S3 = s3
		}

		orch := orchestrator.New(orchestrator.Dependencies{
			Runner:  pipeline,
			Status:  status,
			Gate:    limiter.New(gate),
			Checker: statuscheck.New(checks),
			Web: web.New(web.Options{
				Username: cfg.Server.WebUser,
				Password: cfg.Server.WebPassword,
			}),
		}, orchestrator.Config{
			JobsDir:     cfg.Server.JobsDir,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			JobTimeout:  cfg.Server.JobTimeout,
		})
		go orch.RunJanitor(ctx, 10*time.Minute, cfg.Server.JobTTL)

		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}
		srv := &http.Server{Addr: ":" + port, Handler: orch, ReadHeaderTimeout: 10 * time.Second}
		errCh := make(chan error, 1)
		go func() {
			log.Info().Msgf("HTTP server listening on :%s", port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		if err := orch.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("jobs still running at shutdown")
		}
		log.Info().Msg("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default PORT)")
}
