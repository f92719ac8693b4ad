// Package project holds the per-run inputs of a report: the texts typed into
// the form, the source ZIP and the logos.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/local/mtreport/internal/classify"
)

// ErrMissingInput is matched by every *MissingInputError.
var ErrMissingInput = errors.New("missing required input")

// MissingInputError lists the required fields that were empty or pointed at
// files that do not exist.
type MissingInputError struct {
	Fields []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingInput, strings.Join(e.Fields, ", "))
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// Logos are the four corner images.
type Logos struct {
	TopLeft     string `yaml:"top_left" json:"top_left"`
	TopRight    string `yaml:"top_right" json:"top_right"`
	BottomLeft  string `yaml:"bottom_left" json:"bottom_left"`
	BottomRight string `yaml:"bottom_right" json:"bottom_right"`
}

// Project is immutable once validated and is passed by value.
type Project struct {
	Title        string `yaml:"title" json:"title"`
	Subtitle     string `yaml:"subtitle" json:"subtitle"`
	Introduction string `yaml:"introduction" json:"introduction"`
	ZipPath      string `yaml:"zip" json:"zip"`
	OutputDir    string `yaml:"output_dir" json:"output_dir"`
	CoverImage   string `yaml:"cover_image" json:"cover_image"`
	Logos        Logos  `yaml:"logos" json:"logos"`
}

// Validate reports every missing required field at once.
func (p Project) Validate() error {
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	need("title", p.Title)
	need("introduction", p.Introduction)
	need("zip", p.ZipPath)
	need("output_dir", p.OutputDir)
	need("logos.top_left", p.Logos.TopLeft)
	need("logos.top_right", p.Logos.TopRight)

	if p.ZipPath != "" {
		if info, err := os.Stat(p.ZipPath); err != nil || info.IsDir() {
			missing = append(missing, "zip (not found: "+p.ZipPath+")")
		}
	}
	if len(missing) > 0 {
		return &MissingInputError{Fields: missing}
	}
	return nil
}

// Load reads a project from YAML. Relative paths resolve against the file's
// directory so a project file can sit next to its ZIP.
func Load(path string) (Project, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Project{}, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Project{}, fmt.Errorf("parse project %s: %w", path, err)
	}
	base := filepath.Dir(path)
	for _, f := range []*string{&p.ZipPath, &p.OutputDir, &p.CoverImage, &p.Logos.TopLeft, &p.Logos.TopRight, &p.Logos.BottomLeft, &p.Logos.BottomRight} {
		if *f != "" && !filepath.IsAbs(*f) {
			*f = filepath.Join(base, *f)
		}
	}
	return p, nil
}

// Slug turns the title into a file-name fragment.
func (p Project) Slug() string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range classify.StripAccents(p.Title) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" {
		return "proyecto"
	}
	if len(s) > 60 {
		s = strings.TrimSuffix(s[:60], "_")
	}
	return s
}
