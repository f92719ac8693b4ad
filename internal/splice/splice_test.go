package splice

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/local/mtreport/internal/layout"
)

// states marks the named sources; every other source is Ready.
func states(m map[string]State) func(string) State {
	return func(p string) State { return m[p] }
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		tasks       []layout.InsertionTask
		state       map[string]State
		want        []Segment
		wantSkipped []string
	}{
		{
			name:  "no tasks keeps everything",
			total: 4,
			want:  []Segment{{From: 1, To: 4}},
		},
		{
			name:  "placeholder and fillers replaced",
			total: 7,
			tasks: []layout.InsertionTask{{Placeholder: 5, Source: "r.pdf", Pages: 3}},
			want:  []Segment{{From: 1, To: 4}, {Source: "r.pdf"}},
		},
		{
			name:        "missing source keeps placeholder and drops fillers",
			total:       8,
			tasks:       []layout.InsertionTask{{Placeholder: 5, Source: "r.pdf", Pages: 3}},
			state:       map[string]State{"r.pdf": Missing},
			want:        []Segment{{From: 1, To: 5}, {From: 8, To: 8}},
			wantSkipped: []string{"r.pdf"},
		},
		{
			name:        "unmergeable source keeps its whole span",
			total:       8,
			tasks:       []layout.InsertionTask{{Placeholder: 5, Source: "r.pdf", Pages: 3}},
			state:       map[string]State{"r.pdf": Unmergeable},
			want:        []Segment{{From: 1, To: 8}},
			wantSkipped: []string{"r.pdf"},
		},
		{
			name:  "adjacent attachments",
			total: 9,
			tasks: []layout.InsertionTask{
				{Placeholder: 3, Source: "a.pdf", Pages: 2},
				{Placeholder: 5, Source: "b.pdf", Pages: 1},
				{Placeholder: 6, Source: "c.pdf", Pages: 3},
			},
			state:       map[string]State{"b.pdf": Missing},
			want:        []Segment{{From: 1, To: 2}, {Source: "a.pdf"}, {From: 5, To: 5}, {Source: "c.pdf"}, {From: 9, To: 9}},
			wantSkipped: []string{"b.pdf"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, skipped := Plan(tc.total, tc.tasks, states(tc.state))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("segments = %v, want %v", got, tc.want)
			}
			if !reflect.DeepEqual(skipped, tc.wantSkipped) {
				t.Fatalf("skipped = %v, want %v", skipped, tc.wantSkipped)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pdf")
	writePDF(t, good, "A4", 2)
	broken := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(broken, []byte("%PDF-1.4 truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	uncounted := filepath.Join(dir, "uncounted.pdf")
	writePDF(t, uncounted, "A4", 1)
	counted := func(p string) bool { return p != uncounted }

	for path, want := range map[string]State{
		good:                           Ready,
		broken:                         Unmergeable,
		uncounted:                      Unmergeable,
		filepath.Join(dir, "gone.pdf"): Missing,
	} {
		if got := Check(counted)(path); got != want {
			t.Errorf("Check(%s) = %d, want %d", filepath.Base(path), got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tasks []layout.InsertionTask
		ok    bool
	}{
		{"disjoint", []layout.InsertionTask{{Placeholder: 2, Pages: 2}, {Placeholder: 4, Pages: 1}}, true},
		{"overlap", []layout.InsertionTask{{Placeholder: 2, Pages: 3}, {Placeholder: 4, Pages: 1}}, false},
		{"duplicate placeholder", []layout.InsertionTask{{Placeholder: 3, Pages: 1}, {Placeholder: 3, Pages: 1}}, false},
		{"past the end", []layout.InsertionTask{{Placeholder: 5, Pages: 3}}, false},
		{"zero pages", []layout.InsertionTask{{Placeholder: 2, Pages: 0}}, false},
	}
	for _, tc := range tests {
		err := Validate(6, tc.tasks)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v", tc.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidTasks) {
			t.Errorf("%s: err %v is not ErrInvalidTasks", tc.name, err)
		}
	}
}

func writePDF(t *testing.T, path, size string, pages int) {
	t.Helper()
	doc := gofpdf.New("P", "pt", size, "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(50, 50, "page")
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		t.Fatal(err)
	}
}

func TestSpliceSubstitutesAttachment(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	attachment := filepath.Join(dir, "att.pdf")
	writePDF(t, report, "A4", 7)
	writePDF(t, attachment, "A5", 3)

	tasks := []layout.InsertionTask{{Placeholder: 5, Source: attachment, Pages: 3}}
	out := filepath.Join(dir, "final.pdf")
	missing, err := Splice(report, out, dir, 7, tasks, nil)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing = %v", missing)
	}
	dims, err := api.PageDimsFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(dims) != 7 {
		t.Fatalf("final has %d pages, want 7", len(dims))
	}
	for i, d := range dims {
		small := d.Width < 500
		if want := i >= 4; small != want {
			t.Fatalf("page %d width %.0f: attachment pages expected at 5-7", i+1, d.Width)
		}
	}
}

func TestSpliceDegradesWhenAttachmentMissing(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	writePDF(t, report, "A4", 8)
	gone := filepath.Join(dir, "gone.pdf")

	tasks := []layout.InsertionTask{{Placeholder: 5, Source: gone, Pages: 3}}
	out := filepath.Join(dir, "final.pdf")
	missing, err := Splice(report, out, dir, 8, tasks, nil)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{gone}) {
		t.Fatalf("missing = %v", missing)
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatal(err)
	}
	// The present case would give 8; the placeholder alone is 3-1 fewer.
	if n != 6 {
		t.Fatalf("final has %d pages, want 6", n)
	}
}

func TestSpliceRejectsOverlap(t *testing.T) {
	dir := t.TempDir()
	tasks := []layout.InsertionTask{{Placeholder: 2, Source: "a", Pages: 2}, {Placeholder: 3, Source: "b", Pages: 1}}
	if _, err := Splice("in.pdf", filepath.Join(dir, "out.pdf"), dir, 4, tasks, nil); !errors.Is(err, ErrInvalidTasks) {
		t.Fatalf("err = %v", err)
	}
}

func TestSpliceKeepsSpanOfUnmergeableAttachment(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	writePDF(t, report, "A4", 8)
	broken := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(broken, []byte("not a pdf pdfcpu can merge"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Another backend counted three pages, so three were reserved.
	tasks := []layout.InsertionTask{{Placeholder: 5, Source: broken, Pages: 3}}
	out := filepath.Join(dir, "final.pdf")
	missing, err := Splice(report, out, dir, 8, tasks, Check(func(string) bool { return true }))
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{broken}) {
		t.Fatalf("missing = %v", missing)
	}
	n, err := api.PageCountFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if n != 8 {
		t.Fatalf("final has %d pages, want 8", n)
	}
}
