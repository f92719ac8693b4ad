package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/local/mtreport/internal/project"
	"github.com/local/mtreport/internal/report"
)

var (
	projectFile string
	introFile   string
	flagProj    project.Project
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one delivery archive",
	Long: `Generate one delivery archive from an evidence ZIP.

Inputs come from a YAML project file, from flags, or both; flags win.

Examples:
  mtreport generate --project obra.yaml
  mtreport generate --zip evidencias.zip --title "Sede Norte" \
      --intro-file intro.txt --logo-tl cliente.png --logo-tr empresa.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		proj, err := resolveProject(cmd)
		if err != nil {
			return err
		}
		pipeline, _, _ := newPipeline(cmd.Context())

		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, titleStyle.Render("Memoria técnica · "+proj.Title))
		res, err := pipeline.Run(cmd.Context(), proj, func(pct int, stage string) {
			fmt.Fprintln(errOut, dimStyle.Render(fmt.Sprintf("  %3d%%  %s", pct, stage)))
		})
		if err != nil {
			var missing *project.MissingInputError
			if errors.As(err, &missing) {
				fmt.Fprintln(errOut, errorStyle.Render("Missing input: "+strings.Join(missing.Fields, ", ")))
			}
			return err
		}
		printSummary(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&projectFile, "project", "p", "", "YAML project file")
	f.StringVar(&flagProj.Title, "title", "", "report title")
	f.StringVar(&flagProj.Subtitle, "subtitle", "", "report subtitle")
	f.StringVar(&flagProj.Introduction, "intro", "", "introduction text")
	f.StringVar(&introFile, "intro-file", "", "file holding the introduction text")
	f.StringVar(&flagProj.ZipPath, "zip", "", "evidence ZIP")
	f.StringVarP(&flagProj.OutputDir, "output", "o", "", "output directory (default REPORT_OUTPUT_DIR)")
	f.StringVar(&flagProj.CoverImage, "cover", "", "cover image")
	f.StringVar(&flagProj.Logos.TopLeft, "logo-tl", "", "top-left logo")
	f.StringVar(&flagProj.Logos.TopRight, "logo-tr", "", "top-right logo")
	f.StringVar(&flagProj.Logos.BottomLeft, "logo-bl", "", "bottom-left logo")
	f.StringVar(&flagProj.Logos.BottomRight, "logo-br", "", "bottom-right logo")
}

// resolveProject merges the project file with explicitly set flags.
func resolveProject(cmd *cobra.Command) (project.Project, error) {
	var proj project.Project
	if projectFile != "" {
		p, err := project.Load(projectFile)
		if err != nil {
			return proj, err
		}
		proj = p
	}
	if introFile != "" {
		b, err := os.ReadFile(introFile)
		if err != nil {
			return proj, fmt.Errorf("read intro: %w", err)
		}
		flagProj.Introduction = string(b)
		if err := cmd.Flags().Set("intro", flagProj.Introduction); err != nil {
			return proj, err
		}
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("title", &proj.Title, flagProj.Title)
	set("subtitle", &proj.Subtitle, flagProj.Subtitle)
	set("intro", &proj.Introduction, flagProj.Introduction)
	set("zip", &proj.ZipPath, flagProj.ZipPath)
	set("output", &proj.OutputDir, flagProj.OutputDir)
	set("cover", &proj.CoverImage, flagProj.CoverImage)
	set("logo-tl", &proj.Logos.TopLeft, flagProj.Logos.TopLeft)
	set("logo-tr", &proj.Logos.TopRight, flagProj.Logos.TopRight)
	set("logo-bl", &proj.Logos.BottomLeft, flagProj.Logos.BottomLeft)
	set("logo-br", &proj.Logos.BottomRight, flagProj.Logos.BottomRight)
	if proj.OutputDir == "" {
		proj.OutputDir = cfg.Report.OutputDir
	}
	return proj, nil
}

func printSummary(w io.Writer, res *report.Result) {
	lines := []string{
		titleStyle.Render("Delivery ready"),
		"Archive:     " + res.ArchivePath,
		fmt.Sprintf("Pages:       %d", res.ReportPages),
		fmt.Sprintf("Sections:    %d", len(res.Entries)),
		fmt.Sprintf("Attachments: %d", len(res.Tasks)),
	}
	if res.S3URL != "" {
		lines = append(lines, "Uploaded:    "+res.S3URL)
	}
	for _, m := range res.Missing {
		lines = append(lines, warnStyle.Render("Missing:     "+filepath.Base(m)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))
}
