// Package watch turns an inbox directory into a queue: every project file
// dropped there is generated once, serially, and then moved aside.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/report"
)

const (
	DoneDir   = "procesados"
	FailedDir = "fallidos"
)

// Runner produces a delivery archive for one project.
type Runner interface {
	Run(ctx context.Context, proj project.Project, progress report.Progress) (*report.Result, error)
}

type Options struct {
	Inbox string
	// Settle is how long a project file must stay unchanged before it runs.
	Settle time.Duration
	// OutputDir is used when a project file leaves output_dir empty.
	OutputDir string
	Runner    Runner
	// OnDone is called after every run. Optional.
	OnDone func(file string, res *report.Result, err error)
}

type Watcher struct {
	opts Options

	mu      sync.Mutex
	pending map[string]*time.Timer
	queue   chan string
}

func New(opts Options) *Watcher {
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	return &Watcher{
		opts:    opts,
		pending: map[string]*time.Timer{},
		queue:   make(chan string, 64),
	}
}

// IsProjectFile reports whether name is a project file the watcher picks up.
func IsProjectFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return (ext == ".yaml" || ext == ".yml") && !strings.HasPrefix(filepath.Base(name), ".")
}

// Run processes project files already in the inbox, then watches it until
// ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Inbox, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Inbox); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Inbox, err)
	}

	existing, err := w.scan()
	if err != nil {
		return err
	}
	for _, f := range existing {
		w.schedule(f)
	}

	go w.worker(ctx)
	log.Info().Str("inbox", w.opts.Inbox).Dur("settle", w.opts.Settle).Msg("watching inbox")

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				if IsProjectFile(ev.Name) {
					w.schedule(ev.Name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) scan() ([]string, error) {
	entries, err := os.ReadDir(w.opts.Inbox)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && IsProjectFile(e.Name()) {
			out = append(out, filepath.Join(w.opts.Inbox, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// schedule restarts the settle timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.Settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.queue <- path
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			if _, err := os.Stat(path); err != nil {
				continue
			}
			res, err := w.Process(ctx, path)
			if w.opts.OnDone != nil {
				w.opts.OnDone(path, res, err)
			}
		}
	}
}

// Process runs one project file and moves it to the done or failed folder.
func (w *Watcher) Process(ctx context.Context, path string) (*report.Result, error) {
	logger := log.With().Str("project", filepath.Base(path)).Logger()
	proj, err := project.Load(path)
	if err == nil {
		if proj.OutputDir == "" {
			proj.OutputDir = w.opts.OutputDir
		}
		var res *report.Result
		res, err = w.opts.Runner.Run(ctx, proj, func(pct int, stage string) {
			logger.Debug().Int("progress", pct).Str("stage", stage).Msg("progress")
		})
		if err == nil {
			logger.Info().Str("archive", res.ArchivePath).Msg("project generated")
			return res, w.move(path, DoneDir)
		}
	}
	if errors.Is(err, context.Canceled) {
		// Left in place so the next start picks it up again.
		return nil, err
	}
	logger.Error().Err(err).Msg("project failed")
	if mvErr := w.move(path, FailedDir); mvErr != nil {
		logger.Warn().Err(mvErr).Msg("could not move failed project")
	}
	return nil, err
}

func (w *Watcher) move(path, sub string) error {
	dir := filepath.Join(w.opts.Inbox, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	stamp := time.Now().Format("20060102_150405")
	ext := filepath.Ext(path)
	name := strings.TrimSuffix(filepath.Base(path), ext) + "_" + stamp + ext
	return os.Rename(path, filepath.Join(dir, name))
}
