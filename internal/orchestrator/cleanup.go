package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/store"
)

// sweeper is implemented by stores that expire jobs in process.
type sweeper interface {
	Sweep() map[string]store.Status
}

// CleanupJobs removes job directories under dir last modified more than
// maxAge ago and returns how many it removed.
func CleanupJobs(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			log.Warn().Err(err).Str("job_id", e.Name()).Msg("failed to remove expired job dir")
			continue
		}
		removed++
	}
	return removed
}

// RunJanitor expires job status and old job directories every interval
// until ctx is done.
func (o *Orchestrator) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s, ok := o.deps.Status.(sweeper); ok {
				for id := range s.Sweep() {
					_ = os.RemoveAll(filepath.Join(o.cfg.JobsDir, id))
				}
			}
			if n := CleanupJobs(o.cfg.JobsDir, maxAge); n > 0 {
				log.Info().Int("removed", n).Msg("expired job dirs removed")
			}
		}
	}
}
