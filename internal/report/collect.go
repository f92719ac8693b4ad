package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/mtreport/internal/classify"
	"github.com/local/mtreport/internal/converter"
	"github.com/local/mtreport/internal/layout"
	"github.com/local/mtreport/internal/metrics"
	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/tree"
)

// inputs is everything the layout needs from one extracted ZIP.
type inputs struct {
	root         string
	buckets      classify.Buckets
	locationMode bool
	inventory    []layout.Attachment
	maintenance  *tree.Tree
}

func (p *Pipeline) collect(ctx context.Context, root, runDir string) (*inputs, error) {
	b, err := classify.Sort(root, p.opts.Confirmer)
	if err != nil {
		return nil, err
	}
	in := &inputs{
		root:    root,
		buckets: b,
		// Location mode is on whenever the ZIP carries a location folder.
		locationMode: len(b.Location) > 0,
	}
	log.Ctx(ctx).Info().
		Int("location", len(b.Location)).
		Int("inventory", len(b.Inventory)).
		Int("images", len(b.MaintenanceImages)).
		Int("pdfs", len(b.MaintenancePDFs)).
		Int("annexes", len(b.Annexes)).
		Bool("location_mode", in.locationMode).
		Msg("files classified")

	in.inventory, err = p.inventory(ctx, b.Inventory, filepath.Join(runDir, "convertidos"))
	if err != nil {
		return nil, err
	}
	in.maintenance = tree.Join(
		tree.Build(b.MaintenanceImages, root, in.locationMode, tree.Images),
		tree.Build(b.MaintenancePDFs, root, in.locationMode, tree.PDFs),
	)
	return in, nil
}

// inventory converts spreadsheets and keeps PDFs. A file that cannot be
// converted is left out with a warning.
func (p *Pipeline) inventory(ctx context.Context, files []string, outDir string) ([]layout.Attachment, error) {
	var out []layout.Attachment
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a := layout.Attachment{Title: layout.BaseTitle(f), Path: f}
		if converter.NeedsConversion(f) {
			if p.opts.Converter == nil {
				log.Ctx(ctx).Warn().Str("file", f).Msg("no converter configured; spreadsheet skipped")
				continue
			}
			pdf, err := p.opts.Converter.ToPDF(ctx, f, outDir)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				log.Ctx(ctx).Warn().Err(err).Str("file", f).Msg("spreadsheet conversion failed; skipped")
				continue
			}
			a.Path = pdf
		}
		out = append(out, a)
	}
	return out, nil
}

func (p *Pipeline) document(proj project.Project, in *inputs, annexes []layout.Attachment) layout.Document {
	return layout.Document{
		Cover: layout.Cover{
			Title:    proj.Title,
			Subtitle: proj.Subtitle,
			Image:    proj.CoverImage,
		},
		Introduction: proj.Introduction,
		LocationMode: in.locationMode,
		Location:     in.buckets.Location,
		Inventory:    in.inventory,
		Maintenance:  in.maintenance,
		Annexes:      annexes,
	}
}

// copyAnnexes copies annexes and attached technical documents into the
// delivery's annex folder and returns the annex list linked to the copies.
// Clashing names get a numeric suffix. Files gone since classification are
// skipped with a warning.
func copyAnnexes(deliveryDir string, annexes, technical []string) ([]layout.Attachment, error) {
	used := map[string]bool{}
	var links []layout.Attachment
	for i, src := range append(append([]string(nil), annexes...), technical...) {
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("file", src).Msg("attachment missing; not copied")
			metrics.IncMissing("annex")
			continue
		}
		name := uniqueName(filepath.Base(src), used)
		dst := filepath.Join(deliveryDir, AnnexDir, name)
		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("copy annex %s: %w", src, err)
		}
		if i < len(annexes) {
			links = append(links, layout.Attachment{
				Title: layout.BaseTitle(src),
				Path:  src,
				Link:  AnnexDir + "/" + name,
			})
		}
	}
	return links, nil
}

func uniqueName(name string, used map[string]bool) string {
	key := strings.ToLower(name)
	if !used[key] {
		used[key] = true
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := stem + "_" + strconv.Itoa(n) + ext
		if !used[strings.ToLower(candidate)] {
			used[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
