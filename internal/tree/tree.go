// Package tree groups classified files into the ordered four-level hierarchy
// section → subsection → group → category used by the report body.
package tree

import (
	"github.com/local/mtreport/internal/classify"
)

// NoSubsection fills the subsection slot when location tracking is off.
// It is never drawn.
const NoSubsection = "__SIN_UBICACION__"

// Media selects which leaf list a file is appended to.
type Media int

const (
	Images Media = iota
	PDFs
)

// Key addresses a category leaf.
type Key struct {
	Section    string
	Subsection string
	Group      string
	Category   string
}

func (k Key) path() [4]string {
	return [4]string{k.Section, k.Subsection, k.Group, k.Category}
}

// MapLevels turns a classified path into a tree key. Both the image tree and
// the PDF tree go through here so their keys line up. Without location mode
// the subsection slot holds NoSubsection and the real subsection moves down to
// the group slot; the category stays the immediate parent folder, falling
// back to the group when the path is too shallow.
func MapLevels(p classify.Path, locationMode bool) Key {
	if locationMode {
		return Key{Section: p.Section, Subsection: p.Subsection, Group: p.Group, Category: p.Category}
	}
	category := p.Category
	if category == "" {
		category = p.Group
	}
	return Key{Section: p.Section, Subsection: NoSubsection, Group: p.Subsection, Category: category}
}

// Node is one level of the tree. Leaves (depth 4) carry files.
type Node struct {
	Name     string
	Children []*Node
	Images   []string
	PDFs     []string

	index map[string]*Node
}

// Child looks up a direct child without creating it.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.index[name]
	return c, ok
}

func (n *Node) getOrCreate(name string) *Node {
	if c, ok := n.index[name]; ok {
		return c
	}
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	c := &Node{Name: name}
	n.index[name] = c
	n.Children = append(n.Children, c)
	return c
}

// Tree is an insertion-ordered hierarchy.
type Tree struct {
	root Node
}

// New returns an empty tree.
func New() *Tree { return &Tree{} }

// Add walks key, creating missing levels, and appends file to the leaf.
func (t *Tree) Add(k Key, m Media, file string) {
	n := &t.root
	for _, name := range k.path() {
		n = n.getOrCreate(name)
	}
	switch m {
	case Images:
		n.Images = append(n.Images, file)
	case PDFs:
		n.PDFs = append(n.PDFs, file)
	}
}

// Sections returns the top level in insertion order.
func (t *Tree) Sections() []*Node { return t.root.Children }

// leaf returns the category at k, or nil. It never creates nodes.
func (t *Tree) leaf(k Key) *Node {
	n := &t.root
	for _, name := range k.path() {
		c, ok := n.Child(name)
		if !ok {
			return nil
		}
		n = c
	}
	return n
}

// Walk visits every leaf in order.
func (t *Tree) Walk(fn func(k Key, leaf *Node)) {
	for _, s := range t.root.Children {
		for _, sub := range s.Children {
			for _, g := range sub.Children {
				for _, c := range g.Children {
					fn(Key{Section: s.Name, Subsection: sub.Name, Group: g.Name, Category: c.Name}, c)
				}
			}
		}
	}
}

// Empty reports whether the tree has no leaves.
func (t *Tree) Empty() bool { return len(t.root.Children) == 0 }

// Build classifies files against root and adds them under m.
func Build(files []string, root string, locationMode bool, m Media) *Tree {
	t := New()
	for _, f := range files {
		t.Add(MapLevels(classify.Classify(f, root), locationMode), m, f)
	}
	return t
}

// Join merges an image tree and a PDF tree into the traversal order used by
// the layout engine: image keys first, then keys only the PDF tree has,
// appended under their existing parents.
func Join(images, pdfs *Tree) *Tree {
	out := New()
	images.Walk(func(k Key, leaf *Node) {
		for _, f := range leaf.Images {
			out.Add(k, Images, f)
		}
		if len(leaf.Images) == 0 {
			out.touch(k)
		}
	})
	pdfs.Walk(func(k Key, leaf *Node) {
		for _, f := range leaf.PDFs {
			out.Add(k, PDFs, f)
		}
	})
	return out
}

func (t *Tree) touch(k Key) {
	n := &t.root
	for _, name := range k.path() {
		n = n.getOrCreate(name)
	}
}
