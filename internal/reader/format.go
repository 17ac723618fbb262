package reader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/metcalfc/marg/internal/chapter"
)

var (
	ErrUnsupported     = errors.New("unsupported book format")
	ErrSectionNotFound = errors.New("section not found in book")
	ErrNoTOC           = errors.New("book has no table of contents")
	ErrInvalidBook     = errors.New("invalid book structure")
)

// Book is an opened book file.
type Book interface {
	// Title and Author come from the book's own metadata and may be empty.
	Title() string
	Author() string
	// SectionText returns the plain text of the section stored at path.
	// Each block element of the section becomes one line.
	SectionText(path string) (string, error)
	// TOC returns the nested table of contents.
	TOC() ([]chapter.Entry, error)
	// Root is the archive directory holding the package document.
	Root() string
	Close() error
}

// Format defines a book format reader.
type Format interface {
	Name() string
	Extensions() []string
	Open(filename string) (Book, error)
}

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// OpenBook opens filename with the format registered for its extension.
func OpenBook(filename string) (Book, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f.Open(filename)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(filename))
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}
