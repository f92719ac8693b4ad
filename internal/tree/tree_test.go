package tree

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/local/mtreport/internal/classify"
)

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestBuildKeepsInsertionOrder(t *testing.T) {
	root := "/r"
	files := []string{
		"/r/04 Mant/Zona B/Tablero/Antes/1.jpg",
		"/r/04 Mant/Zona A/Tablero/Antes/2.jpg",
		"/r/03 Otro/Zona C/Rack/Despues/3.jpg",
		"/r/04 Mant/Zona B/Tablero/Antes/4.jpg",
	}
	tr := Build(files, root, true, Images)

	if got := names(tr.Sections()); !reflect.DeepEqual(got, []string{"04 Mant", "03 Otro"}) {
		t.Fatalf("sections = %v", got)
	}
	if got := names(tr.Sections()[0].Children); !reflect.DeepEqual(got, []string{"Zona B", "Zona A"}) {
		t.Fatalf("subsections = %v", got)
	}
	leaf := tr.leaf(Key{"04 Mant", "Zona B", "Tablero", "Antes"})
	if leaf == nil || !reflect.DeepEqual(leaf.Images, []string{files[0], files[3]}) {
		t.Fatalf("leaf images = %+v", leaf)
	}
}

func TestLeafDoesNotCreate(t *testing.T) {
	tr := New()
	tr.Add(Key{"S", "A", "G", "C"}, Images, "x.jpg")
	if tr.leaf(Key{"S", "B", "G", "C"}) != nil {
		t.Fatal("unexpected leaf")
	}
	if got := len(tr.Sections()[0].Children); got != 1 {
		t.Fatalf("lookup created a branch: %d subsections", got)
	}
}

func TestMapLevels(t *testing.T) {
	p := classify.Path{Section: "04 Mant", Subsection: "Zona A", Group: "Tablero", Category: "Antes"}
	if got := MapLevels(p, true); got != (Key{"04 Mant", "Zona A", "Tablero", "Antes"}) {
		t.Fatalf("location mode = %+v", got)
	}
	if got := MapLevels(p, false); got != (Key{"04 Mant", NoSubsection, "Zona A", "Antes"}) {
		t.Fatalf("no-location mode = %+v", got)
	}
	shallow := classify.Path{Section: "04 Mant", Subsection: "Zona A"}
	if got := MapLevels(shallow, false); got != (Key{"04 Mant", NoSubsection, "Zona A", ""}) {
		t.Fatalf("shallow = %+v", got)
	}
}

func TestImageAndPDFKeysCorrelate(t *testing.T) {
	root := filepath.FromSlash("/r")
	img := filepath.FromSlash("/r/02 Maintenance/AreaA/Before/photo1.jpg")
	pdf := filepath.FromSlash("/r/02 Maintenance/AreaA/Before/report.pdf")
	for _, lm := range []bool{true, false} {
		images := Build([]string{img}, root, lm, Images)
		pdfs := Build([]string{pdf}, root, lm, PDFs)
		var ik, pk Key
		images.Walk(func(k Key, _ *Node) { ik = k })
		pdfs.Walk(func(k Key, _ *Node) { pk = k })
		if ik != pk {
			t.Fatalf("locationMode=%v: image key %+v != pdf key %+v", lm, ik, pk)
		}
	}
}

func TestJoin(t *testing.T) {
	images := New()
	images.Add(Key{"S1", "A", "G", "C1"}, Images, "1.jpg")
	images.Add(Key{"S2", "A", "G", "C1"}, Images, "2.jpg")
	pdfs := New()
	pdfs.Add(Key{"S1", "A", "G", "C1"}, PDFs, "1.pdf")
	pdfs.Add(Key{"S1", "A", "G", "C9"}, PDFs, "9.pdf")
	pdfs.Add(Key{"S3", "X", "Y", "Z"}, PDFs, "3.pdf")

	j := Join(images, pdfs)
	if got := names(j.Sections()); !reflect.DeepEqual(got, []string{"S1", "S2", "S3"}) {
		t.Fatalf("sections = %v", got)
	}
	c1 := j.leaf(Key{"S1", "A", "G", "C1"})
	if !reflect.DeepEqual(c1.Images, []string{"1.jpg"}) || !reflect.DeepEqual(c1.PDFs, []string{"1.pdf"}) {
		t.Fatalf("C1 = %+v", c1)
	}
	g := j.Sections()[0].Children[0].Children[0]
	if got := names(g.Children); !reflect.DeepEqual(got, []string{"C1", "C9"}) {
		t.Fatalf("pdf-only category not appended under its group: %v", got)
	}
}
