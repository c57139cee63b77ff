// Package tree renders catalog records under a directory as a compact,
// nested listing suitable for a language-model prompt or a terminal.
package tree

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/lfind/internal/storage"
)

// DefaultMaxEntries caps rendered children per directory
const DefaultMaxEntries = 100

// Node is one directory or file in the tree
type Node struct {
	Name     string
	Path     string
	Type     storage.FileType
	Children []*Node
}

// Options controls Render
type Options struct {
	MaxEntries       int      // per directory, default 100
	IncludeEmptyDirs bool     // render directories with no rendered children
	Extensions       []string // only render files with these extensions
}

// Build nests records under root. Records outside root are ignored, and
// intermediate directories are created as needed. Children are sorted by
// name, directories first.
func Build(records []*storage.FileRecord, root string) *Node {
	root = filepath.Clean(root)
	name := filepath.Base(root)
	if name == string(filepath.Separator) || name == "." {
		name = root
	}
	top := &Node{Name: name, Path: root, Type: storage.TypeDirectory}

	b := &builder{index: make(map[*Node]map[string]*Node)}
	for _, rec := range records {
		rel, err := filepath.Rel(root, rec.AbsolutePath)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		b.insert(top, strings.Split(rel, string(filepath.Separator)), rec)
	}

	sortTree(top)
	return top
}

// builder keeps a name index per directory so that inserting n records
// stays linear in n however wide a directory gets
type builder struct {
	index map[*Node]map[string]*Node
}

func (b *builder) insert(parent *Node, parts []string, rec *storage.FileRecord) {
	for i, part := range parts {
		last := i == len(parts)-1
		child := b.index[parent][part]

		if last {
			if child == nil {
				b.add(parent, part, &Node{
					Name: rec.Name,
					Path: rec.AbsolutePath,
					Type: rec.Type,
				})
			} else if rec.Type == storage.TypeDirectory {
				child.Type = storage.TypeDirectory
			}
			return
		}

		if child == nil {
			child = &Node{
				Name: part,
				Path: filepath.Join(parent.Path, part),
				Type: storage.TypeDirectory,
			}
			b.add(parent, part, child)
		}
		parent = child
	}
}

func (b *builder) add(parent *Node, key string, child *Node) {
	names := b.index[parent]
	if names == nil {
		names = make(map[string]*Node)
		b.index[parent] = names
	}
	names[key] = child
	parent.Children = append(parent.Children, child)
}

func sortTree(n *Node) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.Type != b.Type {
			return a.Type == storage.TypeDirectory
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		sortTree(c)
	}
}

// Render returns the listing lines and the absolute paths of every rendered
// file, in rendering order. A directory renders as "<Dir: name>", its
// children, then "</Dir>".
func Render(root *Node, opts Options) ([]string, []string) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	var exts map[string]bool
	if len(opts.Extensions) > 0 {
		exts = make(map[string]bool, len(opts.Extensions))
		for _, e := range opts.Extensions {
			exts[storage.NormalizeExtension(e)] = true
		}
	}

	r := &renderer{opts: opts, exts: exts}
	lines := r.node(root)
	if lines == nil {
		lines = []string{}
	}
	if r.paths == nil {
		r.paths = []string{}
	}
	return lines, r.paths
}

type renderer struct {
	opts  Options
	exts  map[string]bool
	paths []string
}

func (r *renderer) node(n *Node) []string {
	if n == nil {
		return nil
	}

	if n.Type != storage.TypeDirectory {
		if r.exts != nil && !r.exts[storage.ExtensionOf(n.Name)] {
			return nil
		}
		r.paths = append(r.paths, n.Path)
		return []string{n.Name}
	}

	var body []string
	count := 0
	for _, c := range n.Children {
		out := r.node(c)
		if len(out) == 0 {
			continue
		}
		body = append(body, out...)
		count++
		if count >= r.opts.MaxEntries {
			break
		}
	}

	if len(body) == 0 && !r.opts.IncludeEmptyDirs {
		return nil
	}
	lines := make([]string, 0, len(body)+2)
	lines = append(lines, "<Dir: "+n.Name+">")
	lines = append(lines, body...)
	return append(lines, "</Dir>")
}
