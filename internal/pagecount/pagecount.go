// Package pagecount reports how many pages an attached PDF has. Counting never
// fails: a file no backend can read counts as one page, so the layout and the
// splicer still agree on the span reserved for it.
package pagecount

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// Backend counts the pages of a PDF on disk.
type Backend interface {
	Name() string
	PageCount(path string) (int, error)
}

type entry struct {
	pages int
	ok    bool
}

// Estimator tries each backend in order and memoizes the result per path, so
// every stage of a run sees the same number for the same file.
type Estimator struct {
	backends []Backend

	mu    sync.Mutex
	cache map[string]entry
}

// New returns an Estimator over backends. With none given it uses pdfcpu,
// then ledongthuc/pdf, then MuPDF.
func New(backends ...Backend) *Estimator {
	if len(backends) == 0 {
		backends = []Backend{PDFCPU{}, Ledongthuc{}, Fitz{}}
	}
	return &Estimator{backends: backends, cache: make(map[string]entry)}
}

// CountPages returns the page count of path, or 1 when it cannot be read.
func (e *Estimator) CountPages(path string) int {
	return e.lookup(path).pages
}

// Readable reports whether some backend could open path.
func (e *Estimator) Readable(path string) bool {
	return e.lookup(path).ok
}

func (e *Estimator) lookup(path string) entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if en, ok := e.cache[path]; ok {
		return en
	}
	en := e.count(path)
	e.cache[path] = en
	return en
}

func (e *Estimator) count(path string) entry {
	if _, err := os.Stat(path); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("attachment missing; counting one page")
		return entry{pages: 1}
	}
	var errs []error
	for _, b := range e.backends {
		n, err := b.PageCount(path)
		if err == nil && n > 0 {
			log.Debug().Str("file", path).Str("backend", b.Name()).Int("pages", n).Msg("page count")
			return entry{pages: n, ok: true}
		}
		if err == nil {
			err = fmt.Errorf("no pages")
		}
		errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
	}
	log.Warn().Err(errors.Join(errs...)).Str("file", path).Msg("attachment unreadable; counting one page")
	return entry{pages: 1}
}
