package main

import (
	"context"
	"os"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/mtreport/internal/config"
	"github.com/local/mtreport/internal/converter"
	"github.com/local/mtreport/internal/filetype"
	"github.com/local/mtreport/internal/limiter"
	"github.com/local/mtreport/internal/logger"
	"github.com/local/mtreport/internal/metrics"
	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/report"
	"github.com/local/mtreport/internal/storage"
)

var (
	envFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mtreport",
	Short: "Build technical-report deliveries from evidence ZIPs",
	Long: `mtreport turns a ZIP of numbered evidence folders into a delivery archive:
a paginated PDF report with cover, introduction, index, photo grids and
embedded attachments, plus copies of every annex.

Commands:
  generate  build one report from flags or a project file
  serve     run the HTTP job API and dashboard
  watch     generate every project file dropped into an inbox`,
	Version:       gitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadDotEnv(envFile)
		cfg = config.FromEnv()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		opts := logger.FromConfig(cfg)
		opts.Console = os.Stderr
		return logger.Init(opts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	rootCmd.AddCommand(generateCmd, serveCmd, watchCmd, versionCmd)
}

// newPipeline wires the report pipeline from cfg. The returned office is nil
// when LibreOffice is disabled.
func newPipeline(ctx context.Context) (*report.Pipeline, *converter.LibreOffice, *storage.S3Client) {
	metrics.Init()

	var office *converter.LibreOffice
	if cfg.Converter.LibreOffice {
		office = converter.NewLibreOffice(cfg.Converter.Binary, cfg.Converter.Workers, cfg.Converter.Timeout)
		if !office.Available() {
			log.Warn().Str("binary", cfg.Converter.Binary).Msg("libreoffice not found; xlsx inventory uses the built-in renderer, xls is skipped")
		}
	}

	opts := report.Options{
		Report:    cfg.Report,
		Converter: converter.NewChain(office),
	}
	if cfg.Report.SniffContent {
		opts.Confirmer = filetype.New()
	}

	var s3 *storage.S3Client
	if cfg.Storage.Bucket != "" {
		var err error
		s3, err = storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("S3 upload disabled")
		} else {
			opts.Uploader = s3
		}
	}
	return report.New(opts), office, s3
}

// gated runs the pipeline behind a limiter.Gate so watchers on several hosts
// sharing REPORT_WORK_DIR take turns.
type gated struct {
	pipeline *report.Pipeline
	gate     *limiter.Gate
}

func (g gated) Run(ctx context.Context, proj project.Project, progress report.Progress) (*report.Result, error) {
	release, err := g.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return g.pipeline.Run(ctx, proj, progress)
}

// newGate caps local runs and adds the shared Redis lock when REDIS_URL is set.
func newGate(maxConcurrent int) (*limiter.Gate, error) {
	opts := limiter.Options{MaxConcurrent: maxConcurrent, LockTTL: cfg.Redis.LockTTL}
	if cfg.Redis.URL != "" {
		ro, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		opts.Redis = redis.NewClient(ro)
	}
	return limiter.New(opts), nil
}
