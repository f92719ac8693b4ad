package pdfrender

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/classify"
	"github.com/local/mtreport/internal/layout"
)

// Logos are drawn in the page corners of every numbered page. Empty paths are
// left out.
type Logos struct {
	TopLeft     string
	TopRight    string
	BottomLeft  string
	BottomRight string
}

const (
	logoHeight = 42.0
	logoMaxW   = 120.0
	logoInset  = 24.0
)

type headingStyle struct {
	style string
	size  float64
	rule  bool
}

var headingStyles = map[int]headingStyle{
	1: {style: "B", size: 18, rule: true},
	2: {style: "B", size: 14},
	3: {style: "B", size: 12},
	4: {style: "BI", size: 11},
}

// Renderer is the gofpdf implementation of layout.Renderer.
type Renderer struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	metrics *Metrics
	logos   Logos
	// registered holds images already embedded; false marks a file that
	// could not be prepared.
	registered map[string]bool
}

// New returns a Renderer with automatic page breaks disabled; the layout
// engine decides every break.
func New(logos Logos, m *Metrics) *Renderer {
	if m == nil {
		m = NewMetrics()
	}
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(layout.Margin, layout.Top, layout.Margin)
	pdf.SetTitle("Memoria Técnica", true)
	pdf.SetCreator("mtreport", true)
	return &Renderer{
		pdf:        pdf,
		tr:         pdf.UnicodeTranslatorFromDescriptor(""),
		metrics:    m,
		logos:      logos,
		registered: make(map[string]bool),
	}
}

func (r *Renderer) SplitText(text string, width float64) []string {
	return r.metrics.SplitText(text, width)
}

// StartPage adds a page. Numbered pages get the corner logos and a centered
// page number in the footer.
func (r *Renderer) StartPage(numbered bool) {
	r.pdf.AddPage()
	if !numbered {
		return
	}
	r.decorate()
}

func (r *Renderer) PageNo() int { return r.pdf.PageNo() }

func (r *Renderer) decorate() {
	top := logoInset
	bottom := layout.PageHeight - logoInset - logoHeight
	left := layout.Margin
	right := layout.PageWidth - layout.Margin
	r.logo(r.logos.TopLeft, left, top, false)
	r.logo(r.logos.TopRight, right, top, true)
	r.logo(r.logos.BottomLeft, left, bottom, false)
	r.logo(r.logos.BottomRight, right, bottom, true)

	r.pdf.SetFont(fontFamily, "", 9)
	r.pdf.SetTextColor(90, 90, 90)
	r.pdf.SetXY(layout.Margin, layout.PageHeight-logoInset-logoHeight/2-6)
	r.pdf.CellFormat(layout.TextWidth, 12, strconv.Itoa(r.pdf.PageNo()), "", 0, "C", false, 0, "")
	r.pdf.SetTextColor(0, 0, 0)
}

// logo draws path at height logoHeight; alignRight anchors its right edge at x.
func (r *Renderer) logo(path string, x, y float64, alignRight bool) {
	if path == "" || !r.register(path) {
		return
	}
	info := r.pdf.GetImageInfo(path)
	w, h := fit(info.Width(), info.Height(), logoMaxW, logoHeight)
	if alignRight {
		x -= w
	}
	r.pdf.ImageOptions(path, x, y, w, h, false, gofpdf.ImageOptions{ImageType: "JPG"}, 0, "")
}

// register embeds the image once. It reports whether the image is usable.
func (r *Renderer) register(path string) bool {
	if ok, seen := r.registered[path]; seen {
		return ok
	}
	buf, err := prepareImage(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("image could not be prepared; cell left blank")
		r.registered[path] = false
		return false
	}
	r.pdf.RegisterImageOptionsReader(path, gofpdf.ImageOptions{ImageType: "JPG"}, buf)
	if r.pdf.Err() {
		log.Warn().Err(r.pdf.Error()).Str("file", path).Msg("image rejected by pdf writer")
		r.pdf.ClearError()
		r.registered[path] = false
		return false
	}
	r.registered[path] = true
	return true
}

func (r *Renderer) DrawCover(c layout.Cover) {
	y := layout.PageHeight * 0.3
	for _, line := range r.wrap(c.Title, 26, "B") {
		r.pdf.SetXY(layout.Margin, y)
		r.pdf.CellFormat(layout.TextWidth, 32, r.tr(line), "", 0, "C", false, 0, "")
		y += 32
	}
	if c.Subtitle != "" {
		y += 12
		for _, line := range r.wrap(c.Subtitle, 16, "") {
			r.pdf.SetXY(layout.Margin, y)
			r.pdf.CellFormat(layout.TextWidth, 22, r.tr(line), "", 0, "C", false, 0, "")
			y += 22
		}
	}
	if c.Image != "" && r.register(c.Image) {
		info := r.pdf.GetImageInfo(c.Image)
		w, h := fit(info.Width(), info.Height(), layout.TextWidth, layout.Bottom-y-40)
		if h > 0 {
			r.pdf.ImageOptions(c.Image, (layout.PageWidth-w)/2, y+40, w, h, false, gofpdf.ImageOptions{ImageType: "JPG"}, 0, "")
		}
	}
}

// wrap splits s with the given font rather than the body font.
func (r *Renderer) wrap(s string, size float64, style string) []string {
	r.pdf.SetFont(fontFamily, style, size)
	return wrapWords(s, layout.TextWidth, func(t string) float64 {
		return r.pdf.GetStringWidth(r.tr(t))
	})
}

func (r *Renderer) DrawHeading(text string, level int, y float64) {
	st, ok := headingStyles[level]
	if !ok {
		st = headingStyles[4]
	}
	r.pdf.SetFont(fontFamily, st.style, st.size)
	r.pdf.SetXY(layout.Margin, y)
	r.pdf.CellFormat(layout.TextWidth, st.size+6, r.tr(text), "", 0, "L", false, 0, "")
	if st.rule {
		r.pdf.SetDrawColor(120, 120, 120)
		r.pdf.SetLineWidth(0.8)
		r.pdf.Line(layout.Margin, y+st.size+10, layout.PageWidth-layout.Margin, y+st.size+10)
	}
}

func (r *Renderer) DrawText(line string, y float64) {
	r.pdf.SetFont(fontFamily, "", bodyFontSize)
	r.pdf.SetXY(layout.Margin, y)
	r.pdf.CellFormat(layout.TextWidth, layout.LineHeight, r.tr(line), "", 0, "L", false, 0, "")
}

// DrawImageGrid fills the cells of one block row by row. Each image is fitted
// into its cell, centered on the column, and captioned with its cleaned file
// name.
func (r *Renderer) DrawImageGrid(files []string, l layout.Layout, y float64) {
	centers := l.ColumnCenters()
	for i, f := range files {
		row, col := i/l.Columns, i%l.Columns
		top := l.CellTop(y, row)
		cx := centers[col]
		if r.register(f) {
			info := r.pdf.GetImageInfo(f)
			w, h := fit(info.Width(), info.Height(), l.CellW, l.CellH)
			r.pdf.ImageOptions(f, cx-w/2, top+(l.CellH-h)/2, w, h, false, gofpdf.ImageOptions{ImageType: "JPG"}, 0, "")
		}
		r.pdf.SetFont(fontFamily, "I", 9)
		r.pdf.SetXY(cx-l.CellW/2, top+l.CellH+2)
		r.pdf.CellFormat(l.CellW, layout.CaptionHeight, r.tr(caption(f)), "", 0, "C", false, 0, "")
	}
}

// caption is the file name without extension or ordering prefix.
func caption(path string) string {
	return classify.CleanTitle(layout.BaseTitle(path))
}

func (r *Renderer) DrawPlaceholder(title string, y float64) {
	r.pdf.SetFont(fontFamily, "B", 14)
	r.pdf.SetXY(layout.Margin, y+layout.PageHeight/4)
	r.pdf.CellFormat(layout.TextWidth, 20, r.tr(classify.CleanTitle(title)), "", 0, "C", false, 0, "")
	r.pdf.SetFont(fontFamily, "I", 10)
	r.pdf.SetXY(layout.Margin, y+layout.PageHeight/4+24)
	r.pdf.CellFormat(layout.TextWidth, 14, r.tr("Documento adjunto"), "", 0, "C", false, 0, "")
}

const (
	indexIndent = 18.0
	indexPageW  = 40.0
)

// DrawIndexPage lists entries indented by level with right-aligned page numbers.
func (r *Renderer) DrawIndexPage(entries []layout.IndexEntry, y float64) {
	for _, e := range entries {
		style := ""
		if e.Level == 1 {
			style = "B"
		}
		r.pdf.SetFont(fontFamily, style, bodyFontSize)
		indent := float64(max(e.Level-1, 0)) * indexIndent
		r.pdf.SetXY(layout.Margin+indent, y)
		r.pdf.CellFormat(layout.TextWidth-indexPageW-indent, layout.LineHeight, r.tr(classify.CleanTitle(e.Title)), "", 0, "L", false, 0, "")
		r.pdf.CellFormat(indexPageW, layout.LineHeight, strconv.Itoa(e.Page), "", 0, "R", false, 0, "")
		y += layout.LineHeight
	}
}

// DrawLink writes text as a link to target, relative to the delivered report.
func (r *Renderer) DrawLink(text, target string, y float64) {
	r.pdf.SetFont(fontFamily, "U", bodyFontSize)
	r.pdf.SetTextColor(20, 60, 160)
	r.pdf.SetXY(layout.Margin, y)
	r.pdf.CellFormat(layout.TextWidth, layout.LineHeight, r.tr(text), "", 0, "L", false, 0, filepath.ToSlash(target))
	r.pdf.SetTextColor(0, 0, 0)
}

// Save writes the document to path and closes it.
func (r *Renderer) Save(path string) error {
	if err := r.pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf %s: %w", path, err)
	}
	return nil
}
