package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(n)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(entries[n])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractAndFindRoot(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "in.zip")
	writeZip(t, zp, map[string]string{
		"Obra/02 Ubicación/foto.jpg":        "jpg",
		"Obra/04 Mantenimiento/A/B/C/x.png": "png",
		"__MACOSX/Obra/._foto.jpg":          "junk",
	})
	dest := filepath.Join(dir, "out")
	if err := Extract(zp, dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	root, err := FindRoot(dest)
	if err != nil {
		t.Fatal(err)
	}
	if root != filepath.Join(dest, "Obra") {
		t.Fatalf("root = %s", root)
	}
	if _, err := os.Stat(filepath.Join(root, "02 Ubicación", "foto.jpg")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dest, "__MACOSX")); !os.IsNotExist(err) {
		t.Fatal("metadata folder was extracted")
	}
}

func TestFindRootWithSeveralFolders(t *testing.T) {
	dir := t.TempDir()
	for _, d := range []string{"02 Ubicacion", "04 Mantenimiento"} {
		if err := os.Mkdir(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	root, err := FindRoot(dir)
	if err != nil || root != dir {
		t.Fatalf("root = %s, %v", root, err)
	}
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	zp := filepath.Join(dir, "evil.zip")
	writeZip(t, zp, map[string]string{"../../escape.txt": "x"})
	if err := Extract(zp, filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected zip slip error")
	}
}

func TestPackUsesRelativeNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "entrega")
	files := map[string]string{
		"Reporte_Principal.pdf": "pdf",
		"anexos/cert.pdf":       "cert",
	}
	for name, body := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	zp := filepath.Join(dir, "out", "entrega.zip")
	if err := Pack(src, zp); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	zr, err := zip.OpenReader(zp)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if want := []string{"Reporte_Principal.pdf", "anexos/cert.pdf"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v", names)
	}
}
