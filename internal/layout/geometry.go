package layout

import (
	"strings"

	"github.com/local/mtreport/internal/classify"
)

// A4 page geometry in points. The y axis grows downward from the top edge;
// the cursor holds the baseline of the next element.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
	Margin     = 40.0
	TextWidth  = PageWidth - 2*Margin

	// Top is where the cursor resets on every new page; Bottom is the lowest
	// point content may reach.
	Top    = 100.0
	Bottom = PageHeight - 100.0

	SectionTitleHeight    = 40.0
	SubsectionTitleHeight = 30.0
	GroupTitleHeight      = 26.0
	CategoryTitleHeight   = 22.0

	// MinBlockSpace is the least room a heading needs before it is pushed to
	// the next page.
	MinBlockSpace = SectionTitleHeight + Margin

	LineHeight    = 16.0
	CaptionHeight = 14.0

	gridTopPad    = 10.0
	gridBottomPad = 20.0
	gridRowPad    = 48.0
)

// Layout is an image grid shape.
type Layout struct {
	PerBlock int
	Columns  int
	CellW    float64
	CellH    float64
}

var (
	// FourUp is the default: two columns, up to four images per block.
	FourUp = Layout{PerBlock: 4, Columns: 2, CellW: 235, CellH: 220}
	// TwoUp gives screenshots and test evidence a full-width cell. Cells
	// stay 220 high so a two-row block fits below a section title.
	TwoUp = Layout{PerBlock: 2, Columns: 1, CellW: 400, CellH: 220}
)

// RowGap is the vertical advance of one grid row including its caption.
func (l Layout) RowGap() float64 {
	return l.CellH + CaptionHeight + gridRowPad
}

// Rows returns how many rows n images occupy.
func (l Layout) Rows(n int) int {
	return (n + l.Columns - 1) / l.Columns
}

// BlockHeight is the vertical space consumed by a block of n images.
func (l Layout) BlockHeight(n int) float64 {
	return gridTopPad + float64(l.Rows(n))*l.RowGap() + gridBottomPad
}

// RowsFit returns how many full rows fit into the given vertical space.
func (l Layout) RowsFit(space float64) int {
	rows := int((space - gridTopPad - gridBottomPad) / l.RowGap())
	if rows < 0 {
		return 0
	}
	return rows
}

// ColumnCenters returns the x coordinate of each column's center.
func (l Layout) ColumnCenters() []float64 {
	if l.Columns == 1 {
		return []float64{PageWidth / 2}
	}
	return []float64{PageWidth * 0.27, PageWidth * 0.73}
}

// CellTop returns the top edge of the cell row for the block starting at y.
func (l Layout) CellTop(y float64, row int) float64 {
	return y + gridTopPad + float64(row)*l.RowGap()
}

var twoUpKeywords = []string{"pantalla", "pruebas"}

// ChooseLayout picks the grid for a category from the names of every level
// above it. Screens and tests get the larger two-up cells.
func ChooseLayout(levels ...string) Layout {
	combined := classify.Fold(strings.Join(levels, " "))
	for _, kw := range twoUpKeywords {
		if strings.Contains(combined, kw) {
			return TwoUp
		}
	}
	return FourUp
}
