// Package chapter maps book section paths to table of contents titles.
package chapter

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

// ErrUnresolved is returned when no table of contents entry equals or precedes
// a section path.
var ErrUnresolved = errors.New("no chapter for section")

// Entry is one node of a book's table of contents. Grouping headings carry
// their entries in Children and may have an empty Href.
type Entry struct {
	Title    string
	Href     string
	Children []Entry
}

// Index maps cleaned section paths to chapter titles.
type Index struct {
	root   string
	titles map[string]string
	keys   []string // sorted
}

// Build flattens toc into an Index. root is the directory of the package
// document inside the archive (for example "OEBPS"); paths under it are
// matched with the prefix removed. The first title seen for a path wins.
func Build(toc []Entry, root string) *Index {
	idx := &Index{
		root:   strings.Trim(root, "/"),
		titles: make(map[string]string),
	}
	var walk func(entries []Entry)
	walk = func(entries []Entry) {
		for _, e := range entries {
			if e.Href != "" {
				key := idx.Clean(e.Href)
				if _, ok := idx.titles[key]; !ok && key != "" {
					idx.titles[key] = strings.TrimSpace(e.Title)
				}
			}
			walk(e.Children)
		}
	}
	walk(toc)

	idx.keys = make([]string, 0, len(idx.titles))
	for k := range idx.titles {
		idx.keys = append(idx.keys, k)
	}
	slices.Sort(idx.keys)
	return idx
}

// Clean drops the fragment of href, decodes percent escapes and strips the
// package root prefix.
func (idx *Index) Clean(href string) string {
	p := stripFragment(href)
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	p = strings.TrimPrefix(p, "/")
	if idx.root != "" {
		p = strings.TrimPrefix(p, idx.root+"/")
	}
	return p
}

// Match returns the title of the chapter containing section. Sections that
// are not listed in the table of contents, typically split HTML files, map to
// the nearest lexically preceding entry.
func (idx *Index) Match(section string) (string, error) {
	if t, ok := idx.titles[stripFragment(section)]; ok {
		return t, nil
	}
	clean := idx.Clean(section)
	if t, ok := idx.titles[clean]; ok {
		return t, nil
	}
	i, _ := slices.BinarySearch(idx.keys, clean)
	if i == 0 {
		return "", ErrUnresolved
	}
	return idx.titles[idx.keys[i-1]], nil
}

// Len returns the number of distinct paths in the index.
func (idx *Index) Len() int { return len(idx.keys) }

// Paths returns the indexed paths in lexical order.
func (idx *Index) Paths() []string { return slices.Clone(idx.keys) }

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
