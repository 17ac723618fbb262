package reader

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/taylorskalyo/goreader/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EPUBFormat implements Format for EPUB files.
type EPUBFormat struct{}

func init() {
	Register(&EPUBFormat{})
}

func (f *EPUBFormat) Name() string         { return "EPUB" }
func (f *EPUBFormat) Extensions() []string { return []string{".epub"} }

// Open reads the container and package document of an EPUB file.
func (f *EPUBFormat) Open(filename string) (Book, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	if len(rc.Rootfiles) == 0 {
		rc.Close()
		return nil, fmt.Errorf("%w: no rootfiles found in epub", ErrInvalidBook)
	}

	book := rc.Rootfiles[0]
	root := path.Dir(book.FullPath)
	if root == "." {
		root = ""
	}
	return &epubBook{filename: filename, rc: rc, book: book, root: root}, nil
}

type epubBook struct {
	filename string
	rc       *epub.ReadCloser
	book     *epub.Rootfile
	root     string
}

func (b *epubBook) Title() string  { return strings.TrimSpace(b.book.Title) }
func (b *epubBook) Author() string { return strings.TrimSpace(b.book.Creator) }
func (b *epubBook) Root() string   { return b.root }
func (b *epubBook) Close() error   { b.rc.Close(); return nil }

// SectionText resolves a reader container path such as
// "OEBPS/xhtml/ch01.xhtml#point(/1/4/2:0)" to a manifest item and returns its
// plain text. Shorter suffixes of the path are tried until one matches.
func (b *epubBook) SectionText(section string) (string, error) {
	want := unescape(stripFragment(section))
	parts := strings.Split(strings.TrimPrefix(want, "/"), "/")
	for i := range parts {
		suffix := strings.Join(parts[i:], "/")
		for _, item := range b.book.Manifest.Items {
			href := unescape(item.HREF)
			if href != suffix && path.Join(b.root, href) != suffix {
				continue
			}
			r, err := item.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open section %s: %w", href, err)
			}
			data, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				return "", fmt.Errorf("failed to read section %s: %w", href, err)
			}
			return extractTextFromHTML(string(data)), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSectionNotFound, section)
}

// Validate checks that the book has a spine and a title.
func Validate(b Book) error {
	eb, ok := b.(*epubBook)
	if !ok {
		return nil
	}
	if len(eb.book.Spine.Itemrefs) == 0 {
		return fmt.Errorf("%w: no spine items found in epub", ErrInvalidBook)
	}
	if eb.Title() == "" {
		return fmt.Errorf("%w: no title metadata found", ErrInvalidBook)
	}
	return nil
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true,
	atom.Th: true, atom.Tr: true, atom.Ul: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true,
}

// extractTextFromHTML renders a section as lines of text, one per block.
func extractTextFromHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return ""
	}

	var out strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			out.WriteString(strings.Map(func(r rune) rune {
				if unicode.IsSpace(r) {
					return ' '
				}
				return r
			}, n.Data))
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			out.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			out.WriteByte('\n')
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}

func unescape(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}
