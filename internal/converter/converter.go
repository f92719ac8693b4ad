// Package converter turns inventory spreadsheets into PDFs so they can be
// embedded in the report.
package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Converter writes a PDF rendition of in into outDir.
type Converter interface {
	ToPDF(ctx context.Context, in, outDir string) (string, error)
}

// Chain tries LibreOffice first when it is enabled and installed, then the
// built-in table renderer for xlsx workbooks.
type Chain struct {
	Office   *LibreOffice
	Fallback Converter
}

// NewChain returns a Chain. office may be nil to skip LibreOffice.
func NewChain(office *LibreOffice) *Chain {
	return &Chain{Office: office, Fallback: Sheets{}}
}

// NeedsConversion reports whether path is a spreadsheet rather than a PDF.
func NeedsConversion(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xls", ".xlsx":
		return true
	}
	return false
}

func (c *Chain) ToPDF(ctx context.Context, in, outDir string) (string, error) {
	var errs []error
	if c.Office != nil && c.Office.Available() {
		out, err := c.Office.ToPDF(ctx, in, outDir)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, ErrProtected) {
			return "", fmt.Errorf("%s: %w", filepath.Base(in), err)
		}
		log.Warn().Err(err).Str("file", in).Msg("LibreOffice conversion failed; trying table fallback")
		errs = append(errs, err)
	}
	if c.Fallback != nil && strings.EqualFold(filepath.Ext(in), ".xlsx") {
		out, err := c.Fallback.ToPDF(ctx, in, outDir)
		if err == nil {
			return out, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no converter for %s", filepath.Base(in))
	}
	return "", fmt.Errorf("convert %s: %w", filepath.Base(in), errors.Join(errs...))
}
