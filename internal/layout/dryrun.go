package layout

import (
	"path/filepath"
	"strings"
)

// DryRun is the inkless Renderer of the simulation pass. It counts pages and
// delegates text measurement so line wrapping matches the real output.
type DryRun struct {
	m    Metrics
	page int
}

// NewDryRun returns a DryRun measuring text with m.
func NewDryRun(m Metrics) *DryRun { return &DryRun{m: m} }

func (d *DryRun) StartPage(bool) { d.page++ }
func (d *DryRun) PageNo() int    { return d.page }

func (d *DryRun) SplitText(text string, width float64) []string {
	return d.m.SplitText(text, width)
}

func (d *DryRun) DrawCover(Cover)                         {}
func (d *DryRun) DrawHeading(string, int, float64)        {}
func (d *DryRun) DrawText(string, float64)                {}
func (d *DryRun) DrawImageGrid([]string, Layout, float64) {}
func (d *DryRun) DrawPlaceholder(string, float64)         {}
func (d *DryRun) DrawIndexPage([]IndexEntry, float64)     {}
func (d *DryRun) DrawLink(string, string, float64)        {}

// BaseTitle is a file name without directory or extension.
func BaseTitle(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
