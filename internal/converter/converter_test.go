package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, rows int) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	header := []any{"Equipo", "Marca", "Modelo", "Serie", "Ubicación"}
	if err := f.SetSheetRow("Sheet1", "A1", &header); err != nil {
		t.Fatal(err)
	}
	for i := 2; i <= rows+1; i++ {
		row := []any{fmt.Sprintf("Switch %d", i), "Cisco", "C9200", fmt.Sprintf("SN%05d", i), "Rack A"}
		if err := f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i), &row); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.NewSheet("Vacía"); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func TestSheetsToPDFPaginates(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "inventario.xlsx")
	writeWorkbook(t, in, 80)

	out, err := Sheets{}.ToPDF(context.Background(), in, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if filepath.Base(out) != "inventario.pdf" {
		t.Fatalf("output named %s", out)
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if n < 2 {
		t.Fatalf("81 rows should take more than one landscape page, got %d", n)
	}
}

func TestChainFallsBackWithoutLibreOffice(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "equipos.xlsx")
	writeWorkbook(t, in, 3)

	c := NewChain(NewLibreOffice("soffice-not-installed", 1, time.Second))
	out, err := c.ToPDF(context.Background(), in, dir)
	if err != nil {
		t.Fatalf("ToPDF: %v", err)
	}
	if n, err := api.PageCountFile(out); err != nil || n != 1 {
		t.Fatalf("got %d pages, %v", n, err)
	}
}

func TestChainRejectsLegacyXLSWithoutOffice(t *testing.T) {
	c := NewChain(nil)
	if _, err := c.ToPDF(context.Background(), "/tmp/viejo.xls", t.TempDir()); err == nil {
		t.Fatal("expected an error for .xls without LibreOffice")
	}
}

func TestNeedsConversion(t *testing.T) {
	tests := map[string]bool{
		"a.xlsx": true,
		"a.XLS":  true,
		"a.pdf":  false,
		"a.png":  false,
	}
	for in, want := range tests {
		if got := NeedsConversion(in); got != want {
			t.Errorf("NeedsConversion(%q) = %v", in, got)
		}
	}
}
