package pagecount

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFCPU counts pages with pdfcpu.
type PDFCPU struct{}

func (PDFCPU) Name() string { return "pdfcpu" }

func (PDFCPU) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Ledongthuc reads the page tree with ledongthuc/pdf, which tolerates some
// files pdfcpu rejects.
type Ledongthuc struct{}

func (Ledongthuc) Name() string { return "ledongthuc" }

func (Ledongthuc) PageCount(path string) (n int, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// Fitz counts pages with MuPDF through go-fitz.
type Fitz struct{}

func (Fitz) Name() string { return "mupdf" }

func (Fitz) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
