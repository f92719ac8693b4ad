package layout

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/classify"
	"github.com/local/mtreport/internal/tree"
)

// Fixed section titles.
const (
	TitleIntroduction = "Introducción"
	TitleIndex        = "Índice"
	TitleLocation     = "Ubicación"
	TitleInventory    = "Inventario"
	TitleAnnexes      = "Anexos"
)

const (
	defaultLinesPerIndexPage = 35
	defaultMaxIndexPasses    = 4
)

// ErrDiverged means the render pass placed a heading on a different page than
// the simulation did.
var ErrDiverged = errors.New("layout: render pass diverged from simulation")

// Options configures an Engine.
type Options struct {
	Pages             PageCounter
	LinesPerIndexPage int
	MaxIndexPasses    int
	// Exists reports whether an image is still on disk. Defaults to os.Stat.
	Exists func(path string) bool
	// OnMissing is told about each image skipped during the render pass.
	OnMissing func(path string)
}

// Engine walks a Document and makes every page-break decision. Simulate and
// Render share the same walk so their page arithmetic cannot drift apart.
type Engine struct {
	opts Options
}

// NewEngine returns an Engine with defaults filled in.
func NewEngine(opts Options) *Engine {
	if opts.LinesPerIndexPage <= 0 {
		opts.LinesPerIndexPage = defaultLinesPerIndexPage
	}
	if opts.MaxIndexPasses <= 0 {
		opts.MaxIndexPasses = defaultMaxIndexPasses
	}
	if opts.Exists == nil {
		opts.Exists = fileExists
	}
	return &Engine{opts: opts}
}

// Simulate runs the layout without ink and returns the index entries with
// their final page numbers. The index budget starts from EstimateIndexPages
// and is corrected until the collected entries fit it exactly.
func (e *Engine) Simulate(doc Document, m Metrics) (*Plan, error) {
	budget := e.EstimateIndexPages(doc)
	for pass := 1; pass <= e.opts.MaxIndexPasses; pass++ {
		plan := e.walk(doc, NewDryRun(m), budget, nil, false)
		need := e.indexPagesFor(len(plan.Entries))
		log.Debug().Int("pass", pass).Int("budget", budget).Int("need", need).Int("pages", plan.Pages).Msg("layout simulated")
		if need == budget {
			log.Info().Int("entries", len(plan.Entries)).Int("pages", plan.Pages).Int("index_pages", budget).Int("tasks", len(plan.Tasks)).Msg("simulation complete")
			return plan, nil
		}
		budget = need
	}
	return nil, fmt.Errorf("layout: index page budget did not settle after %d passes", e.opts.MaxIndexPasses)
}

// Render replays the simulated layout on r, drawing the index from sim. The
// entries the render pass would have recorded are compared with sim's.
func (e *Engine) Render(doc Document, r Renderer, sim *Plan) (*Plan, error) {
	plan := e.walk(doc, r, sim.IndexPages, sim.Entries, true)
	if !reflect.DeepEqual(plan.Entries, sim.Entries) {
		return plan, ErrDiverged
	}
	log.Info().Int("pages", plan.Pages).Int("tasks", len(plan.Tasks)).Msg("render complete")
	return plan, nil
}

// EstimateIndexPages counts the headings a walk will record.
func (e *Engine) EstimateIndexPages(doc Document) int {
	n := 0
	if doc.LocationMode && len(doc.Location) > 0 {
		n++
	}
	if len(doc.Inventory) > 0 {
		n += 1 + len(doc.Inventory)
	}
	if doc.Maintenance != nil {
		for _, s := range doc.Maintenance.Sections() {
			if drawable(s.Name) {
				n++
			}
			for _, sub := range s.Children {
				if drawable(sub.Name) {
					n++
				}
				for _, g := range sub.Children {
					if drawable(g.Name) {
						n++
					}
				}
			}
		}
	}
	if len(doc.Annexes) > 0 {
		n++
	}
	return e.indexPagesFor(n)
}

func (e *Engine) indexPagesFor(entries int) int {
	per := e.opts.LinesPerIndexPage
	pages := (entries + per - 1) / per
	if pages < 1 {
		return 1
	}
	return pages
}

func drawable(title string) bool {
	return title != tree.NoSubsection && classify.CleanTitle(title) != ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// walker holds the cursor for one pass.
type walker struct {
	opts    Options
	r       Renderer
	plan    *Plan
	render  bool
	y       float64
	section string
}

func (e *Engine) walk(doc Document, r Renderer, indexPages int, frozen []IndexEntry, render bool) *Plan {
	w := &walker{opts: e.opts, r: r, plan: &Plan{IndexPages: indexPages}, render: render}

	r.StartPage(false)
	r.DrawCover(doc.Cover)

	w.openSection(TitleIntroduction, false)
	for _, line := range r.SplitText(doc.Introduction, TextWidth) {
		w.ensure(LineHeight)
		r.DrawText(line, w.y)
		w.y += LineHeight
	}

	w.index(indexPages, frozen)

	if doc.LocationMode && len(doc.Location) > 0 {
		w.openSection(TitleLocation, true)
		w.images(doc.Location, ChooseLayout(TitleLocation))
	}

	if len(doc.Inventory) > 0 {
		w.openSection(TitleInventory, true)
		for _, a := range doc.Inventory {
			w.embed(a, 2)
		}
	}

	if doc.Maintenance != nil {
		w.maintenance(doc.Maintenance)
	}

	if len(doc.Annexes) > 0 {
		w.openSection(TitleAnnexes, true)
		for _, a := range doc.Annexes {
			w.ensure(LineHeight)
			r.DrawLink(a.Title, a.Link, w.y)
			w.y += LineHeight
		}
	}

	w.plan.Pages = r.PageNo()
	return w.plan
}

func (w *walker) index(pages int, frozen []IndexEntry) {
	per := w.opts.LinesPerIndexPage
	for i := 0; i < pages; i++ {
		w.r.StartPage(true)
		w.r.DrawHeading(TitleIndex, 1, Top)
		lo, hi := i*per, (i+1)*per
		if lo < len(frozen) {
			if hi > len(frozen) {
				hi = len(frozen)
			}
			w.r.DrawIndexPage(frozen[lo:hi], Top+SectionTitleHeight)
		}
	}
	w.section = ""
	w.y = Bottom
}

func (w *walker) maintenance(t *tree.Tree) {
	for _, s := range t.Sections() {
		w.openSection(s.Name, true)
		for _, sub := range s.Children {
			w.heading(sub.Name, 2, SubsectionTitleHeight)
			for _, g := range sub.Children {
				w.heading(g.Name, 3, GroupTitleHeight)
				for _, c := range g.Children {
					if !repeats(c.Name, s.Name, sub.Name, g.Name) {
						w.heading(c.Name, 4, CategoryTitleHeight)
					}
					w.images(c.Images, ChooseLayout(s.Name, sub.Name, g.Name, c.Name))
					for _, p := range c.PDFs {
						w.embed(Attachment{Title: BaseTitle(p), Path: p}, 0)
					}
				}
			}
		}
	}
}

// repeats reports whether a category would only restate an ancestor heading.
func repeats(category string, ancestors ...string) bool {
	c := classify.CleanTitle(category)
	for _, a := range ancestors {
		if a != tree.NoSubsection && classify.CleanTitle(a) == c {
			return true
		}
	}
	return false
}

// openSection starts a page for a level-1 heading. An undrawable title still
// resets the section context but does not consume a page.
func (w *walker) openSection(title string, indexed bool) {
	w.section = ""
	if !drawable(title) {
		return
	}
	w.r.StartPage(true)
	w.y = Top
	w.r.DrawHeading(classify.CleanTitle(title), 1, w.y)
	if indexed {
		w.record(title, 1)
	}
	w.section = title
	w.y += SectionTitleHeight
}

func (w *walker) heading(title string, level int, height float64) {
	if !drawable(title) {
		return
	}
	w.ensure(MinBlockSpace)
	w.r.DrawHeading(classify.CleanTitle(title), level, w.y)
	if level <= 3 {
		w.record(title, level)
	}
	w.y += height
}

func (w *walker) record(title string, level int) {
	w.plan.Entries = append(w.plan.Entries, IndexEntry{Title: title, Page: w.r.PageNo(), Level: level})
}

// ensure breaks the page when less than h remains.
func (w *walker) ensure(h float64) {
	if Bottom-w.y < h {
		w.newPage()
	}
}

// newPage continues the current section on a fresh page, redrawing its title.
func (w *walker) newPage() {
	w.r.StartPage(true)
	w.y = Top
	if w.section != "" {
		w.r.DrawHeading(classify.CleanTitle(w.section), 1, w.y)
		w.y += SectionTitleHeight
	}
}

func (w *walker) images(files []string, l Layout) {
	var present []string
	for _, f := range files {
		if w.opts.Exists(f) {
			present = append(present, f)
			continue
		}
		if w.render {
			log.Warn().Str("file", f).Msg("image missing; skipped")
			if w.opts.OnMissing != nil {
				w.opts.OnMissing(f)
			}
		}
	}
	for len(present) > 0 {
		n := min(len(present), l.PerBlock)
		if Bottom-w.y < l.BlockHeight(n) {
			w.newPage()
		}
		// Only a block taller than an empty page is cut to the rows that fit.
		if rows := max(1, l.RowsFit(Bottom-w.y)); l.Rows(n) > rows {
			n = rows * l.Columns
		}
		w.r.DrawImageGrid(present[:n], l, w.y)
		w.y += l.BlockHeight(n)
		present = present[n:]
	}
}

// embed reserves the pages of an attached PDF: one placeholder page naming
// it plus blank filler pages for the rest of its length.
func (w *walker) embed(a Attachment, level int) {
	n := 1
	if w.opts.Pages != nil {
		n = max(1, w.opts.Pages.CountPages(a.Path))
	}
	w.r.StartPage(true)
	w.y = Top
	placeholder := w.r.PageNo()
	if level > 0 {
		w.record(a.Title, level)
	}
	w.r.DrawPlaceholder(a.Title, w.y)
	for i := 1; i < n; i++ {
		w.r.StartPage(true)
	}
	w.plan.Tasks = append(w.plan.Tasks, InsertionTask{Placeholder: placeholder, Source: a.Path, Pages: n})
	log.Debug().Str("file", a.Path).Int("placeholder", placeholder).Int("pages", n).Msg("attachment reserved")
	w.y = Bottom
}
