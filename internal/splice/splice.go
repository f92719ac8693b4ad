// Package splice replaces the placeholder pages of a rendered report with the
// pages of the PDFs they stand for.
package splice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/layout"
)

// ErrInvalidTasks reports insertion tasks whose reserved spans are malformed
// or collide.
var ErrInvalidTasks = errors.New("splice: invalid insertion tasks")

// Segment is one run of the output: either report pages From..To kept as
// drawn, or every page of Source.
type Segment struct {
	From   int
	To     int
	Source string
}

// Insert reports whether the segment substitutes an external PDF.
func (s Segment) Insert() bool { return s.Source != "" }

func (s Segment) String() string {
	if s.Insert() {
		return "insert " + s.Source
	}
	return fmt.Sprintf("keep %d-%d", s.From, s.To)
}

// Validate checks that every task reserves at least one page inside the
// report and that no two spans overlap.
func Validate(total int, tasks []layout.InsertionTask) error {
	sorted := sortedTasks(tasks)
	prev := 0
	for _, t := range sorted {
		switch {
		case t.Placeholder < 1 || t.Pages < 1:
			return fmt.Errorf("%w: %s reserves pages %d+%d", ErrInvalidTasks, t.Source, t.Placeholder, t.Pages)
		case t.Last() > total:
			return fmt.Errorf("%w: %s ends at page %d of %d", ErrInvalidTasks, t.Source, t.Last(), total)
		case t.Placeholder <= prev:
			return fmt.Errorf("%w: %s at page %d overlaps the span ending at %d", ErrInvalidTasks, t.Source, t.Placeholder, prev)
		}
		prev = t.Last()
	}
	return nil
}

// State is what the splicer can do with an insert source.
type State int

const (
	// Ready sources replace their whole reserved span.
	Ready State = iota
	// Missing sources are gone from disk: the placeholder page stays and the
	// filler pages are dropped.
	Missing
	// Unmergeable sources exist but cannot be merged: the whole reserved
	// span stays, so later pages keep the numbers the index promised.
	Unmergeable
)

// Plan walks the report pages in order. Pages at or below the watermark are
// reserved filler and dropped. A placeholder whose source is Ready becomes an
// insert segment; a Missing one keeps just the placeholder page and an
// Unmergeable one keeps the reserved span as drawn. Either way the watermark
// moves to the end of the span. Plan returns the segments and the sources
// that were not inserted.
func Plan(total int, tasks []layout.InsertionTask, state func(string) State) ([]Segment, []string) {
	at := make(map[int]layout.InsertionTask, len(tasks))
	for _, t := range tasks {
		at[t.Placeholder] = t
	}

	var (
		segs      []Segment
		skipped   []string
		watermark int
		open      = -1
	)
	keep := func(from, to int) {
		if open >= 0 && segs[open].To == from-1 {
			segs[open].To = to
			return
		}
		segs = append(segs, Segment{From: from, To: to})
		open = len(segs) - 1
	}

	for p := 1; p <= total; p++ {
		if p <= watermark {
			continue
		}
		t, ok := at[p]
		if !ok {
			keep(p, p)
			continue
		}
		watermark = p + max(t.Pages, 1) - 1
		switch state(t.Source) {
		case Ready:
			segs = append(segs, Segment{Source: t.Source})
			open = -1
		case Unmergeable:
			skipped = append(skipped, t.Source)
			keep(p, watermark)
		default:
			skipped = append(skipped, t.Source)
			keep(p, p)
		}
	}
	return segs, skipped
}

// Check returns the default source check. counted reports whether the page
// estimator could read a file; nil trusts every file on disk. A file only
// counts as Ready when it was counted and pdfcpu can merge it, so a span
// reserved from another backend's count is never shortened.
func Check(counted func(string) bool) func(string) State {
	return func(path string) State {
		if _, err := os.Stat(path); err != nil {
			return Missing
		}
		if (counted == nil || counted(path)) && Mergeable(path) {
			return Ready
		}
		return Unmergeable
	}
}

// Config returns the relaxed pdfcpu configuration used for every read.
// Attachments come from many producers and strict validation rejects too many.
func Config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Mergeable reports whether pdfcpu can read path, which is what Assemble
// needs from an insert source.
func Mergeable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	n, err := api.PageCount(f, Config())
	return err == nil && n > 0
}

// Assemble writes out by executing segs against the rendered report in.
// Keep ranges are trimmed into scratch files under workDir and merged in
// order with the insert sources.
func Assemble(in, out, workDir string, segs []Segment) error {
	conf := Config()
	files := make([]string, 0, len(segs))
	for i, s := range segs {
		if s.Insert() {
			files = append(files, s.Source)
			continue
		}
		part := filepath.Join(workDir, fmt.Sprintf("keep-%03d.pdf", i))
		sel := []string{strconv.Itoa(s.From)}
		if s.To > s.From {
			sel[0] += "-" + strconv.Itoa(s.To)
		}
		if err := api.TrimFile(in, part, sel, conf); err != nil {
			return fmt.Errorf("trim pages %d-%d: %w", s.From, s.To, err)
		}
		files = append(files, part)
	}
	if len(files) == 0 {
		return errors.New("splice: nothing to assemble")
	}
	if len(files) == 1 {
		return copyFile(files[0], out)
	}
	if err := api.MergeCreateFile(files, out, false, conf); err != nil {
		return fmt.Errorf("merge %d parts: %w", len(files), err)
	}
	return nil
}

// Splice plans and assembles in one step. state defaults to Check(nil). It
// returns the sources that kept their placeholder pages.
func Splice(in, out, workDir string, total int, tasks []layout.InsertionTask, state func(string) State) ([]string, error) {
	if err := Validate(total, tasks); err != nil {
		return nil, err
	}
	if state == nil {
		state = Check(nil)
	}
	segs, missing := Plan(total, tasks, state)
	for _, m := range missing {
		log.Warn().Str("file", m).Msg("attachment unavailable; placeholder pages kept")
	}
	log.Info().Int("segments", len(segs)).Int("tasks", len(tasks)).Int("missing", len(missing)).Msg("splicing report")
	if err := Assemble(in, out, workDir, segs); err != nil {
		return missing, err
	}
	return missing, nil
}

func sortedTasks(tasks []layout.InsertionTask) []layout.InsertionTask {
	sorted := append([]layout.InsertionTask(nil), tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Placeholder < sorted[j].Placeholder })
	return sorted
}

func copyFile(src, dst string) error {
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, b, 0o644)
}
