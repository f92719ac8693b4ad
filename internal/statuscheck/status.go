package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/local/mtreport/internal/pagecount"
)

// Pinger models the minimal capability we need from Redis and S3.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Office reports whether spreadsheet conversion through LibreOffice works.
type Office interface {
	Available() bool
	Version(ctx context.Context) (string, error)
}

// Checker aggregates health checks for the dependencies a report run uses.
type Checker struct {
	redis    Pinger
	s3       Pinger
	office   Office
	backends []pagecount.Backend

	probeOnce sync.Once
	probe     string
	probeErr  error
}

// Options configures the Checker. Nil fields report "not configured".
type Options struct {
	Redis    Pinger
	S3       Pinger
	Office   Office
	Backends []pagecount.Backend
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the dashboard.
type Summary struct {
	Redis       Status            `json:"redis"`
	S3          Status            `json:"s3"`
	LibreOffice Status            `json:"libreoffice"`
	PDF         map[string]Status `json:"pdf"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	backends := opts.Backends
	if backends == nil {
		backends = []pagecount.Backend{pagecount.PDFCPU{}, pagecount.Ledongthuc{}, pagecount.Fitz{}}
	}
	return &Checker{
		redis:    opts.Redis,
		s3:       opts.S3,
		office:   opts.Office,
		backends: backends,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:       ping(ctx, c.redis, 2*time.Second),
		S3:          ping(ctx, c.s3, 5*time.Second),
		LibreOffice: c.checkLibreOffice(ctx),
		PDF:         c.checkPDF(),
	}
}

func ping(ctx context.Context, p Pinger, timeout time.Duration) Status {
	if p == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkLibreOffice(ctx context.Context) Status {
	if c.office == nil {
		return Status{OK: false, Message: "disabled"}
	}
	if !c.office.Available() {
		return Status{OK: false, Message: "Binary not found"}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	v, err := c.office.Version(ctx)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: v}
}

// checkPDF counts the pages of a known one-page document with every backend.
func (c *Checker) checkPDF() map[string]Status {
	c.probeOnce.Do(func() { c.probe, c.probeErr = writeProbe() })
	out := make(map[string]Status, len(c.backends))
	for _, b := range c.backends {
		if c.probeErr != nil {
			out[b.Name()] = Status{OK: false, Message: trimError(c.probeErr)}
			continue
		}
		n, err := b.PageCount(c.probe)
		switch {
		case err != nil:
			out[b.Name()] = Status{OK: false, Message: trimError(err)}
		case n != 1:
			out[b.Name()] = Status{OK: false, Message: fmt.Sprintf("probe counted %d pages", n)}
		default:
			out[b.Name()] = Status{OK: true, Message: "Available"}
		}
	}
	return out
}

func writeProbe() (string, error) {
	dir, err := os.MkdirTemp("", "mtreport-probe-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "probe.pdf")
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	return path, pdf.OutputFileAndClose(path)
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
