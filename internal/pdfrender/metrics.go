// Package pdfrender draws report pages with gofpdf. It provides the Renderer
// used by the render pass and the text metrics both passes wrap lines with.
package pdfrender

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	fontFamily   = "Helvetica"
	bodyFontSize = 11.0
)

// Metrics measures text in the body font. It owns a private document so
// measuring never disturbs the font state of a page being drawn.
type Metrics struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// NewMetrics returns body-font metrics.
func NewMetrics() *Metrics {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont(fontFamily, "", bodyFontSize)
	return &Metrics{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

// Width returns the rendered width of s.
func (m *Metrics) Width(s string) float64 {
	return m.pdf.GetStringWidth(m.tr(s))
}

// SplitText wraps text into lines no wider than width. Newlines start a new
// paragraph and blank lines are kept. A single word wider than the line is
// placed on its own line.
func (m *Metrics) SplitText(text string, width float64) []string {
	return wrapWords(text, width, m.Width)
}

func wrapWords(text string, width float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if measure(candidate) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}
