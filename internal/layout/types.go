package layout

import (
	"github.com/local/mtreport/internal/tree"
)

// IndexEntry is one table-of-contents line.
type IndexEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
	Level int    `json:"level"`
}

// InsertionTask reserves Pages physical pages starting at Placeholder for the
// PDF at Source.
type InsertionTask struct {
	Placeholder int    `json:"placeholder"`
	Source      string `json:"source"`
	Pages       int    `json:"pages"`
}

// Last is the final page of the reserved span.
func (t InsertionTask) Last() int { return t.Placeholder + t.Pages - 1 }

// Plan is what one pass over a document produced.
type Plan struct {
	Entries    []IndexEntry
	Tasks      []InsertionTask
	IndexPages int
	Pages      int
}

// Cover holds the first page contents.
type Cover struct {
	Title    string
	Subtitle string
	Image    string
}

// Attachment is a file listed or embedded under a fixed section.
type Attachment struct {
	Title string
	Path  string
	// Link is the archive-relative target for linked files.
	Link string
}

// Document is the full input of a layout pass.
type Document struct {
	Cover        Cover
	Introduction string
	LocationMode bool
	Location     []string
	Inventory    []Attachment
	Maintenance  *tree.Tree
	Annexes      []Attachment
}

// Metrics measures text the way the output font will.
type Metrics interface {
	SplitText(text string, width float64) []string
}

// Renderer is the drawing capability both passes drive. Positions are chosen
// by the engine; a Renderer only draws and counts pages.
type Renderer interface {
	Metrics
	// StartPage begins a new page. Unnumbered pages carry no page number.
	StartPage(numbered bool)
	// PageNo is the authoritative physical number of the current page.
	PageNo() int
	DrawCover(c Cover)
	DrawHeading(text string, level int, y float64)
	DrawText(line string, y float64)
	DrawImageGrid(files []string, l Layout, y float64)
	DrawPlaceholder(title string, y float64)
	DrawIndexPage(entries []IndexEntry, y float64)
	DrawLink(text, target string, y float64)
}

// PageCounter reports the physical length of an embedded PDF. It never fails;
// unreadable files count as one page.
type PageCounter interface {
	CountPages(path string) int
}
