package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/metcalfc/marg/internal/chapter"
	"github.com/metcalfc/marg/internal/kobo"
	"github.com/metcalfc/marg/internal/quote"
	"github.com/metcalfc/marg/internal/reader"
	"github.com/metcalfc/marg/internal/state"
)

const sectionText = "Agriculture changed everything. Soil is depleted. Rivers carry it away.\n" +
	"A second paragraph begins here. And it ends here.\n"

type fakeStore map[string]kobo.Record

func (s fakeStore) Highlight(_ context.Context, id string) (kobo.Record, error) {
	r, ok := s[id]
	if !ok {
		return kobo.Record{}, fmt.Errorf("highlight %s: %w", id, kobo.ErrNotFound)
	}
	return r, nil
}

type fakeBook struct {
	title, author string
	sections      map[string]string
	toc           []chapter.Entry
	closed        bool
}

func (b *fakeBook) Title() string  { return b.title }
func (b *fakeBook) Author() string { return b.author }
func (b *fakeBook) Root() string   { return "OEBPS" }
func (b *fakeBook) Close() error   { b.closed = true; return nil }

func (b *fakeBook) SectionText(p string) (string, error) {
	text, ok := b.sections[p]
	if !ok {
		return "", reader.ErrSectionNotFound
	}
	return text, nil
}

func (b *fakeBook) TOC() ([]chapter.Entry, error) {
	if b.toc == nil {
		return nil, reader.ErrNoTOC
	}
	return b.toc, nil
}

type fakeMetadata map[string]state.BookMetadata

func (m fakeMetadata) Metadata(file string) (state.BookMetadata, bool) {
	md, ok := m[file]
	return md, ok
}

func newOpener(t *testing.T, rec kobo.Record, book *fakeBook) (*Opener, *string) {
	t.Helper()
	var opened string
	return &Opener{
		Store:    fakeStore{rec.ID: rec},
		BooksDir: "/books",
		OpenBook: func(p string) (reader.Book, error) {
			opened = p
			return book, nil
		},
		ContextSentences: 1,
	}, &opened
}

func testBook() *fakeBook {
	return &fakeBook{
		title:  "Embedded Title",
		author: "Embedded Author",
		sections: map[string]string{
			"OEBPS/text/ch02_split_001.xhtml": sectionText,
		},
		toc: []chapter.Entry{
			{Title: "One", Href: "OEBPS/text/ch01.xhtml"},
			{Title: "Two", Href: "OEBPS/text/ch02.xhtml"},
		},
	}
}

func testRecord() kobo.Record {
	return kobo.Record{
		ID:            "h1",
		BookTitle:     "Dirt",
		Author:        "David R. Montgomery",
		Text:          "is depleted. Rivers carry",
		ContainerPath: "OEBPS/text/ch02_split_001.xhtml#kobo.3.1",
		File:          "Montgomery, David R. - Dirt.epub",
	}
}

func TestOpen(t *testing.T) {
	book := testBook()
	rec := testRecord()
	rec.ContainerPath = "OEBPS/text/ch02_split_001.xhtml"
	o, opened := newOpener(t, rec, book)

	s, err := o.Open(context.Background(), "h1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if want := filepath.Join("/books", rec.File); *opened != want {
		t.Errorf("opened %q, want %q", *opened, want)
	}
	if !book.closed {
		t.Error("book not closed")
	}
	if got := s.Quote(); got != "Soil is depleted. Rivers carry it away." {
		t.Errorf("Quote() = %q", got)
	}
	if s.Chapter != "Two" {
		t.Errorf("Chapter = %q, want %q", s.Chapter, "Two")
	}
	if s.Title != "Dirt" || s.Author != "David R. Montgomery" {
		t.Errorf("book = %q by %q", s.Title, s.Author)
	}
	lo, hi := s.Cursor.Loaded()
	if lo != 0 || hi != 4 {
		t.Errorf("Loaded() = [%d, %d), want [0, 4)", lo, hi)
	}
}

func TestOpenMetadata(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*kobo.Record, *fakeBook)
		metadata   fakeMetadata
		wantTitle  string
		wantAuthor string
	}{
		{
			name:       "database title",
			wantTitle:  "Dirt",
			wantAuthor: "David R. Montgomery",
		},
		{
			name:       "stored correction wins",
			metadata:   fakeMetadata{"Montgomery, David R. - Dirt.epub": {Title: "Dirt: The Erosion of Civilizations", Author: "Montgomery"}},
			wantTitle:  "Dirt: The Erosion of Civilizations",
			wantAuthor: "Montgomery",
		},
		{
			name:       "book metadata when database has none",
			mutate:     func(r *kobo.Record, _ *fakeBook) { r.BookTitle, r.Author = "", "" },
			wantTitle:  "Embedded Title",
			wantAuthor: "Embedded Author",
		},
		{
			name: "file name as last resort",
			mutate: func(r *kobo.Record, b *fakeBook) {
				r.BookTitle, r.Author = "", ""
				b.title, b.author = "", ""
			},
			wantTitle:  "Dirt",
			wantAuthor: "Montgomery, David R.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, book := testRecord(), testBook()
			book.sections[rec.ContainerPath] = sectionText
			if tt.mutate != nil {
				tt.mutate(&rec, book)
			}
			o, _ := newOpener(t, rec, book)
			if tt.metadata != nil {
				o.Metadata = tt.metadata
			}
			s, err := o.Open(context.Background(), "h1")
			if err != nil {
				t.Fatal(err)
			}
			if s.Title != tt.wantTitle || s.Author != tt.wantAuthor {
				t.Errorf("book = %q by %q, want %q by %q", s.Title, s.Author, tt.wantTitle, tt.wantAuthor)
			}
		})
	}
}

func TestOpenWithoutTOC(t *testing.T) {
	rec, book := testRecord(), testBook()
	book.sections[rec.ContainerPath] = sectionText
	book.toc = nil
	o, _ := newOpener(t, rec, book)

	s, err := o.Open(context.Background(), "h1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.Chapter != "" {
		t.Errorf("Chapter = %q, want empty", s.Chapter)
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		text   string
		open   error
		drop   bool
		cancel bool
		want   error
	}{
		{name: "unknown highlight", id: "nope", want: kobo.ErrNotFound},
		{name: "book missing", id: "h1", open: reader.ErrUnsupported, want: reader.ErrUnsupported},
		{name: "section missing", id: "h1", drop: true, want: reader.ErrSectionNotFound},
		{name: "text not in section", id: "h1", text: "Nothing like this exists.", want: quote.ErrAnchorNotFound},
		{name: "anchors out of order", id: "h1", text: "A second paragraph begins here. Soil is depleted.", want: quote.ErrOrderingViolation},
		{name: "cancelled", id: "h1", cancel: true, want: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, book := testRecord(), testBook()
			if !tt.drop {
				book.sections[rec.ContainerPath] = sectionText
			}
			if tt.text != "" {
				rec.Text = tt.text
			}
			o, _ := newOpener(t, rec, book)
			if tt.open != nil {
				o.OpenBook = func(string) (reader.Book, error) { return nil, tt.open }
			}
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			}
			defer cancel()

			if _, err := o.Open(ctx, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNote(t *testing.T) {
	rec, book := testRecord(), testBook()
	book.sections[rec.ContainerPath] = sectionText
	o, _ := newOpener(t, rec, book)
	s, err := o.Open(context.Background(), "h1")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Cursor.ContractBelow(false); err != nil {
		t.Fatal(err)
	}

	n := s.Note("Soil", "worth keeping", []string{"ecology"})
	if n.Quote != "Soil is depleted." {
		t.Errorf("Quote = %q", n.Quote)
	}
	if n.Book != "Dirt" || n.Chapter != "Two" || n.Comment != "worth keeping" || n.Title != "Soil" {
		t.Errorf("Note() = %+v", n)
	}
}
