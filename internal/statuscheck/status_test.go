package statuscheck

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/local/mtreport/internal/pagecount"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type fakeOffice struct {
	available bool
	version   string
}

func (f fakeOffice) Available() bool                         { return f.available }
func (f fakeOffice) Version(context.Context) (string, error) { return f.version, nil }

func TestSummary(t *testing.T) {
	c := New(Options{
		Redis:    pingFunc(func(context.Context) error { return nil }),
		S3:       pingFunc(func(context.Context) error { return errors.New(strings.Repeat("x", 200)) }),
		Office:   fakeOffice{available: true, version: "LibreOffice 7.6"},
		Backends: []pagecount.Backend{pagecount.PDFCPU{}},
	})
	s := c.Summary(context.Background())
	if !s.Redis.OK {
		t.Fatalf("redis = %+v", s.Redis)
	}
	if s.S3.OK || len(s.S3.Message) != 120 {
		t.Fatalf("s3 = %+v", s.S3)
	}
	if !s.LibreOffice.OK || s.LibreOffice.Message != "LibreOffice 7.6" {
		t.Fatalf("libreoffice = %+v", s.LibreOffice)
	}
	if st := s.PDF["pdfcpu"]; !st.OK {
		t.Fatalf("pdfcpu = %+v", st)
	}
}

func TestSummaryUnconfigured(t *testing.T) {
	s := New(Options{Backends: []pagecount.Backend{}}).Summary(context.Background())
	if s.Redis.OK || s.S3.OK || s.LibreOffice.OK {
		t.Fatalf("got %+v", s)
	}
	if s.LibreOffice.Message != "disabled" {
		t.Fatalf("libreoffice = %+v", s.LibreOffice)
	}
	if office := (New(Options{Office: fakeOffice{}})).checkLibreOffice(context.Background()); office.Message != "Binary not found" {
		t.Fatalf("office = %+v", office)
	}
}
