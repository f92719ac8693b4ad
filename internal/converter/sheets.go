package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

const (
	sheetMargin   = 30.0
	sheetRowH     = 14.0
	sheetFontSize = 8.0
	maxColumns    = 12
)

// Sheets renders every worksheet of an xlsx workbook as a plain table. It is
// the fallback when LibreOffice is not installed.
type Sheets struct{}

// ToPDF writes a table PDF for in into outDir.
func (Sheets) ToPDF(_ context.Context, in, outDir string) (string, error) {
	out := filepath.Join(outDir, pdfName(in))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	if err := SheetsToPDF(in, out); err != nil {
		return "", err
	}
	return out, nil
}

// SheetsToPDF reads the workbook at in and writes one or more landscape
// pages per non-empty sheet to out.
func SheetsToPDF(in, out string) error {
	f, err := excelize.OpenFile(in)
	if err != nil {
		return fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	sheets := 0
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		sheets++
		cols := 0
		for _, r := range rows {
			cols = max(cols, min(len(r), maxColumns))
		}
		if cols == 0 {
			continue
		}
		colW := (pageW - 2*sheetMargin) / float64(cols)

		y := pageH
		for i, row := range rows {
			if y+sheetRowH > pageH-sheetMargin {
				pdf.AddPage()
				pdf.SetFont("Helvetica", "B", 11)
				pdf.SetXY(sheetMargin, sheetMargin)
				pdf.CellFormat(pageW-2*sheetMargin, 18, tr(sheet), "", 0, "L", false, 0, "")
				y = sheetMargin + 24
			}
			style := ""
			if i == 0 {
				style = "B"
			}
			pdf.SetFont("Helvetica", style, sheetFontSize)
			for c := 0; c < cols; c++ {
				var v string
				if c < len(row) {
					v = row[c]
				}
				pdf.SetXY(sheetMargin+float64(c)*colW, y)
				pdf.CellFormat(colW, sheetRowH, fitCell(pdf, tr(v), colW-4), "1", 0, "L", false, 0, "")
			}
			y += sheetRowH
		}
	}
	if sheets == 0 {
		return fmt.Errorf("no data found in XLSX")
	}
	return pdf.OutputFileAndClose(out)
}

// fitCell truncates s until it fits w.
func fitCell(pdf *gofpdf.Fpdf, s string, w float64) string {
	for len(s) > 0 && pdf.GetStringWidth(s) > w {
		s = s[:len(s)-1]
	}
	return s
}
