package classify

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Path is the semantic key of a file derived from the folders between the
// extraction root and the file. Empty fields mean the level does not exist.
type Path struct {
	Section    string
	Subsection string
	Group      string
	Category   string
}

// Classify derives the Path of file relative to root. Only directory segments
// count: segment 0 is the section, 1 the subsection, 2 the group, and the
// immediate parent folder is always the category.
func Classify(file, root string) Path {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return Path{}
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	dirs := parts[:len(parts)-1]

	var p Path
	if len(dirs) > 0 {
		p.Section = CleanSegment(dirs[0])
		p.Category = CleanSegment(dirs[len(dirs)-1])
	}
	if len(dirs) > 1 {
		p.Subsection = CleanSegment(dirs[1])
	}
	if len(dirs) > 2 {
		p.Group = CleanSegment(dirs[2])
	}
	return p
}

// CleanSegment turns a folder name into a readable label. Numeric ordering
// prefixes are kept; CleanTitle removes them at draw time.
func CleanSegment(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, ".", "")
	return strings.TrimSpace(s)
}

// CleanTitle strips a leading ordering prefix such as "02 " or "3.1-".
func CleanTitle(s string) string {
	return strings.TrimSpace(strings.TrimLeft(s, "0123456789.- _"))
}

// Fold lowercases s and removes diacritics so "Implementación" matches
// "implementacion".
func Fold(s string) string {
	return strings.ToLower(StripAccents(s))
}

// StripAccents removes combining marks, keeping case.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
