package classify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/filetype"
)

// Buckets holds the files of an extracted project routed by top-level folder.
// Every list is sorted by path relative to the root.
type Buckets struct {
	Location          []string
	Inventory         []string
	MaintenanceImages []string
	MaintenancePDFs   []string
	Annexes           []string
}

// Confirmer checks that a file's content matches its extension.
type Confirmer interface {
	Confirm(path string) (filetype.Kind, bool)
}

type bucket int

const (
	bucketNone bucket = iota
	bucketLocation
	bucketInventory
	bucketMaintenance
	bucketAnnexes
)

// route decides the bucket of a top-level folder. Keywords win over numeric
// prefixes so "02 Mantenimiento" is maintenance, not location.
func route(folder string) bucket {
	name := Fold(folder)
	switch {
	case strings.Contains(name, "mantenimiento"), strings.Contains(name, "implementacion"),
		strings.Contains(name, "maintenance"), strings.Contains(name, "implementation"):
		return bucketMaintenance
	case strings.Contains(name, "anexo"), strings.Contains(name, "annex"):
		return bucketAnnexes
	case strings.HasPrefix(name, "01"):
		return bucketNone
	case strings.HasPrefix(name, "02"):
		return bucketLocation
	case strings.HasPrefix(name, "03"):
		return bucketInventory
	}
	return bucketNone
}

// Sort walks every top-level folder of root and routes its files. When c is
// nil only extensions are checked.
func Sort(root string, c Confirmer) (Buckets, error) {
	var b Buckets
	entries, err := os.ReadDir(root)
	if err != nil {
		return b, fmt.Errorf("read root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		target := route(e.Name())
		if target == bucketNone {
			log.Debug().Str("folder", e.Name()).Msg("folder not routed")
			continue
		}
		err := filepath.WalkDir(filepath.Join(root, e.Name()), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			kind := filetype.KindFromExtension(path)
			if kind == filetype.KindUnknown {
				return nil
			}
			if c != nil {
				if _, ok := c.Confirm(path); !ok {
					log.Warn().Str("file", path).Str("expected", string(kind)).Msg("content does not match extension; skipping")
					return nil
				}
			}
			b.add(target, kind, path)
			return nil
		})
		if err != nil {
			return b, fmt.Errorf("walk %s: %w", e.Name(), err)
		}
	}
	for _, list := range []*[]string{&b.Location, &b.Inventory, &b.MaintenanceImages, &b.MaintenancePDFs, &b.Annexes} {
		sortByRel(*list, root)
	}
	return b, nil
}

func (b *Buckets) add(target bucket, kind filetype.Kind, path string) {
	switch target {
	case bucketLocation:
		if kind == filetype.KindImage {
			b.Location = append(b.Location, path)
		}
	case bucketInventory:
		if kind == filetype.KindPDF || kind == filetype.KindSpreadsheet {
			b.Inventory = append(b.Inventory, path)
		}
	case bucketMaintenance:
		switch kind {
		case filetype.KindImage:
			b.MaintenanceImages = append(b.MaintenanceImages, path)
		case filetype.KindPDF:
			b.MaintenancePDFs = append(b.MaintenancePDFs, path)
		}
	case bucketAnnexes:
		if kind == filetype.KindPDF {
			b.Annexes = append(b.Annexes, path)
		}
	}
}

func sortByRel(files []string, root string) {
	sort.SliceStable(files, func(i, j int) bool {
		return relKey(files[i], root) < relKey(files[j], root)
	})
}

func relKey(file, root string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return file
	}
	return filepath.ToSlash(rel)
}
