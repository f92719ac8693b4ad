package pdfrender

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/local/mtreport/internal/layout"
	"github.com/local/mtreport/internal/tree"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestSplitTextWraps(t *testing.T) {
	m := NewMetrics()
	text := strings.Repeat("palabra ", 60) + "\n\nfin"
	lines := m.SplitText(text, layout.TextWidth)
	if len(lines) < 4 {
		t.Fatalf("expected wrapping, got %d lines", len(lines))
	}
	for _, l := range lines {
		if w := m.Width(l); w > layout.TextWidth {
			t.Fatalf("line %q is %.1f wide", l, w)
		}
	}
	if lines[len(lines)-2] != "" || lines[len(lines)-1] != "fin" {
		t.Fatalf("blank line not kept: %q", lines[len(lines)-2:])
	}
}

func TestPrepareImageDownscales(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, p, 2000, 500)
	buf, err := prepareImage(p)
	if err != nil {
		t.Fatalf("prepareImage: %v", err)
	}
	cfg, format, err := image.DecodeConfig(buf)
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || cfg.Width != maxImageWidth || cfg.Height != 350 {
		t.Fatalf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(p, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := prepareImage(p); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRenderedPageCountMatchesSimulation(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	logo := filepath.Join(dir, "logo.png")
	writePNG(t, logo, 120, 60)

	var photos []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
		p := filepath.Join(root, "04 Mantenimiento", "Sitio", "Rack", "Antes", name)
		writePNG(t, p, 64, 48)
		photos = append(photos, p)
	}
	broken := filepath.Join(root, "04 Mantenimiento", "Sitio", "Rack", "Antes", "f.jpg")
	if err := os.WriteFile(broken, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	photos = append(photos, broken)

	doc := layout.Document{
		Cover:        layout.Cover{Title: "Memoria Técnica de Instalación", Subtitle: "Edificio Central"},
		Introduction: strings.Repeat("Texto de introducción con acentos: áéíóú ñ. ", 200),
		LocationMode: true,
		Maintenance: tree.Join(
			tree.Build(photos, root, true, tree.Images),
			tree.New(),
		),
		Annexes: []layout.Attachment{{Title: "Certificado", Path: "x.pdf", Link: "anexos/x.pdf"}},
	}

	m := NewMetrics()
	e := layout.NewEngine(layout.Options{})
	sim, err := e.Simulate(doc, m)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	r := New(Logos{TopLeft: logo, TopRight: logo, BottomRight: filepath.Join(dir, "missing.png")}, m)
	plan, err := e.Render(doc, r, sim)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := filepath.Join(dir, "out.pdf")
	if err := r.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatalf("PageCountFile: %v", err)
	}
	if n != plan.Pages {
		t.Fatalf("pdf has %d pages, plan says %d", n, plan.Pages)
	}
	if plan.Pages < 5 {
		t.Fatalf("long introduction should span pages, got %d total", plan.Pages)
	}
}

func TestCaptionDropsOrderingPrefix(t *testing.T) {
	for in, want := range map[string]string{
		"/r/04 Mant/Antes/01_foto.jpg":       "foto",
		"/r/04 Mant/Antes/3.2 - tablero.png": "tablero",
		"/r/04 Mant/Antes/IMG_2041.jpeg":     "IMG_2041",
	} {
		if got := caption(in); got != want {
			t.Errorf("caption(%q) = %q, want %q", in, got, want)
		}
	}
}
