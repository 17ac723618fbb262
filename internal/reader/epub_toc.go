package reader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/metcalfc/marg/internal/chapter"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// TOC returns the table of contents from the book's NCX. Hrefs are relative to
// the package document directory, like manifest hrefs.
func (b *epubBook) TOC() ([]chapter.Entry, error) {
	ncxPath, data, err := b.findAndReadNCX()
	if err != nil {
		return nil, err
	}

	var toc ncx
	if err := xml.Unmarshal(data, &toc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	return convertNavPoints(toc.NavMap.NavPoints, path.Dir(ncxPath)), nil
}

func convertNavPoints(points []navPoint, dir string) []chapter.Entry {
	var entries []chapter.Entry
	for _, np := range points {
		entry := chapter.Entry{
			Title:    strings.TrimSpace(np.Label.Text),
			Children: convertNavPoints(np.Children, dir),
		}
		if src := strings.TrimSpace(np.Content.Src); src != "" {
			entry.Href = path.Join(dir, src)
		}
		entries = append(entries, entry)
	}
	return entries
}

// findAndReadNCX returns the NCX location, relative to the package document
// directory, and its contents.
func (b *epubBook) findAndReadNCX() (string, []byte, error) {
	for _, item := range b.book.Manifest.Items {
		if item.MediaType != "application/x-dtbncx+xml" {
			continue
		}
		r, err := item.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open NCX: %w", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read NCX: %w", err)
		}
		return unescape(item.HREF), data, nil
	}

	// Some books ship an NCX without declaring it in the manifest.
	zr, err := zip.OpenReader(b.filename)
	if err != nil {
		return "", nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", nil, err
		}
		name := f.Name
		if b.root != "" {
			name = strings.TrimPrefix(name, b.root+"/")
		}
		return name, data, nil
	}

	return "", nil, ErrNoTOC
}
