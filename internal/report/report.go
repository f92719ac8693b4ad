// Package report runs the whole pipeline: extract the evidence ZIP, classify
// it, lay the report out twice, splice the attachments in and pack the
// delivery archive.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/archive"
	"github.com/local/mtreport/internal/classify"
	"github.com/local/mtreport/internal/config"
	"github.com/local/mtreport/internal/converter"
	"github.com/local/mtreport/internal/layout"
	"github.com/local/mtreport/internal/metrics"
	"github.com/local/mtreport/internal/pagecount"
	"github.com/local/mtreport/internal/pdfrender"
	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/splice"
)

// ErrMissingInput is returned, wrapped in a *project.MissingInputError, when
// required project fields are absent. Nothing is written in that case.
var ErrMissingInput = project.ErrMissingInput

const (
	// MainReportName is the spliced report inside the delivery archive.
	MainReportName = "Reporte_Principal.pdf"
	// AnnexDir holds copies of every annex and attached technical document.
	AnnexDir = "anexos"

	archivePrefix = "Memoria_Tecnica_"
	stampLayout   = "20060102_150405"
)

// Progress checkpoints reported while a run advances.
const (
	ProgressExtracted = 10
	ProgressSimulated = 30
	ProgressPacked    = 90
	ProgressDone      = 100
)

// Progress receives coarse checkpoints. It may be nil.
type Progress func(percent int, stage string)

// Uploader publishes the delivery archive and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Options wires the collaborators of a Pipeline.
type Options struct {
	Report config.ReportConfig
	// Converter turns inventory spreadsheets into PDFs. Spreadsheets are
	// skipped when nil.
	Converter converter.Converter
	// Confirmer checks file content against extensions. Optional.
	Confirmer classify.Confirmer
	Uploader  Uploader
	// PageBackends overrides the page counters. Defaults to pagecount.New's.
	PageBackends []pagecount.Backend
	Now          func() time.Time
}

// Result describes a finished run.
type Result struct {
	ArchivePath string                 `json:"archive_path"`
	ReportPages int                    `json:"report_pages"`
	Entries     []layout.IndexEntry    `json:"entries"`
	Tasks       []layout.InsertionTask `json:"tasks"`
	Missing     []string               `json:"missing,omitempty"`
	S3URL       string                 `json:"s3_url,omitempty"`
}

// Pipeline is safe for concurrent runs; each run owns a private work dir.
type Pipeline struct {
	opts Options
}

func New(opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Report.WorkDir == "" {
		opts.Report.WorkDir = filepath.Join(os.TempDir(), "mtreport")
	}
	return &Pipeline{opts: opts}
}

// Run validates proj and produces the delivery archive in proj.OutputDir.
func (p *Pipeline) Run(ctx context.Context, proj project.Project, progress Progress) (*Result, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	if err := proj.Validate(); err != nil {
		metrics.IncRun("invalid_input")
		return nil, err
	}
	defer metrics.RunStarted()()
	start := time.Now()

	runDir := filepath.Join(p.opts.Report.WorkDir, "run-"+uuid.NewString())
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		metrics.IncRun("failed")
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer p.cleanup(runDir)
	logger := log.With().Str("run", filepath.Base(runDir)).Logger()
	ctx = logger.WithContext(ctx)

	res, err := p.run(ctx, proj, runDir, progress)
	if err != nil {
		metrics.IncRun("failed")
		logger.Error().Err(err).Msg("report run failed")
		return nil, err
	}
	metrics.IncRun("success")
	metrics.ObserveStage("total", time.Since(start))
	progress(ProgressDone, "done")
	logger.Info().Str("archive", res.ArchivePath).Int("pages", res.ReportPages).Dur("duration", time.Since(start)).Msg("report run complete")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, proj project.Project, runDir string, progress Progress) (*Result, error) {
	t := time.Now()
	extractDir := filepath.Join(runDir, "extract")
	if err := archive.Extract(proj.ZipPath, extractDir); err != nil {
		return nil, err
	}
	root, err := archive.FindRoot(extractDir)
	if err != nil {
		return nil, fmt.Errorf("find root: %w", err)
	}
	metrics.ObserveStage("extract", time.Since(t))
	progress(ProgressExtracted, "extracted")

	in, err := p.collect(ctx, root, runDir)
	if err != nil {
		return nil, err
	}

	deliveryDir := filepath.Join(runDir, "entrega")
	if err := os.MkdirAll(filepath.Join(deliveryDir, AnnexDir), 0o755); err != nil {
		return nil, err
	}
	links, err := copyAnnexes(deliveryDir, in.buckets.Annexes, in.buckets.MaintenancePDFs)
	if err != nil {
		return nil, err
	}
	doc := p.document(proj, in, links)

	res, err := p.compose(ctx, proj, doc, runDir, filepath.Join(deliveryDir, MainReportName), progress)
	if err != nil {
		return nil, err
	}

	t = time.Now()
	name := archivePrefix + proj.Slug() + "_" + p.opts.Now().Format(stampLayout) + ".zip"
	res.ArchivePath = filepath.Join(proj.OutputDir, name)
	if err := archive.Pack(deliveryDir, res.ArchivePath); err != nil {
		return nil, fmt.Errorf("pack delivery: %w", err)
	}
	metrics.ObserveStage("pack", time.Since(t))
	progress(ProgressPacked, "packed")

	if p.opts.Uploader != nil {
		url, err := p.opts.Uploader.Upload(ctx, res.ArchivePath)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("archive", res.ArchivePath).Msg("upload failed; archive kept locally")
		} else {
			res.S3URL = url
		}
	}
	return res, nil
}

// compose runs both layout passes and the splice, writing the final report
// to out.
func (p *Pipeline) compose(ctx context.Context, proj project.Project, doc layout.Document, runDir, out string, progress Progress) (*Result, error) {
	logger := log.Ctx(ctx)
	pages := pagecount.New(p.opts.PageBackends...)
	engine := layout.NewEngine(layout.Options{
		Pages:             pages,
		LinesPerIndexPage: p.opts.Report.LinesPerIndexPage,
		MaxIndexPasses:    p.opts.Report.MaxIndexPasses,
		OnMissing:         func(string) { metrics.IncMissing("image") },
	})
	m := pdfrender.NewMetrics()

	t := time.Now()
	sim, err := engine.Simulate(doc, m)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("simulate", time.Since(t))
	progress(ProgressSimulated, "simulated")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	r := pdfrender.New(pdfrender.Logos{
		TopLeft:     proj.Logos.TopLeft,
		TopRight:    proj.Logos.TopRight,
		BottomLeft:  proj.Logos.BottomLeft,
		BottomRight: proj.Logos.BottomRight,
	}, m)
	plan, err := engine.Render(doc, r, sim)
	if err != nil {
		return nil, err
	}
	draft := filepath.Join(runDir, "borrador.pdf")
	if err := r.Save(draft); err != nil {
		return nil, err
	}
	metrics.ObserveStage("render", time.Since(t))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t = time.Now()
	missing, err := splice.Splice(draft, out, runDir, plan.Pages, plan.Tasks, splice.Check(pages.Readable))
	if err != nil {
		return nil, fmt.Errorf("splice: %w", err)
	}
	for range missing {
		metrics.IncMissing("pdf")
	}
	reserved := 0
	for _, task := range plan.Tasks {
		reserved += task.Pages
	}
	metrics.AddSpliced(reserved)
	metrics.ObservePages(plan.Pages)
	metrics.ObserveStage("splice", time.Since(t))
	logger.Info().Int("pages", plan.Pages).Int("attachments", len(plan.Tasks)).Int("missing", len(missing)).Msg("report assembled")

	return &Result{
		ReportPages: plan.Pages,
		Entries:     sim.Entries,
		Tasks:       plan.Tasks,
		Missing:     missing,
	}, nil
}

// cleanup removes the run directory. Failure is logged and never fatal.
func (p *Pipeline) cleanup(runDir string) {
	if p.opts.Report.KeepWork {
		log.Info().Str("dir", runDir).Msg("keeping work directory")
		return
	}
	if err := os.RemoveAll(runDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("dir", runDir).Msg("cleanup failed")
	}
}
