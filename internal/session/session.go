// Package session opens a highlight for editing: it fetches the record, finds
// the highlighted section in the book, locates the quote and maps it to a
// chapter.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/metcalfc/marg/internal/chapter"
	"github.com/metcalfc/marg/internal/kobo"
	"github.com/metcalfc/marg/internal/quote"
	"github.com/metcalfc/marg/internal/reader"
	"github.com/metcalfc/marg/internal/sentence"
	"github.com/metcalfc/marg/internal/state"
	"github.com/metcalfc/marg/internal/tiddler"
)

// HighlightSource returns highlight records by id.
type HighlightSource interface {
	Highlight(ctx context.Context, id string) (kobo.Record, error)
}

// MetadataSource returns user corrections of book metadata.
type MetadataSource interface {
	Metadata(file string) (state.BookMetadata, bool)
}

// Opener creates sessions.
type Opener struct {
	Store            HighlightSource
	BooksDir         string
	OpenBook         func(path string) (reader.Book, error) // reader.OpenBook when nil
	Metadata         MetadataSource                         // optional
	ContextSentences int
	Logger           *slog.Logger
}

// Session is one highlight being edited.
type Session struct {
	Record  kobo.Record
	Title   string // book title, after metadata corrections
	Author  string
	Chapter string // empty when the section is not in the table of contents
	Doc     *sentence.Document
	Cursor  *quote.Cursor
}

// Quote returns the currently selected text.
func (s *Session) Quote() string {
	return s.Cursor.Quote()
}

// Note builds the export form of the session.
func (s *Session) Note(title, comment string, tags []string) tiddler.Note {
	return tiddler.Note{
		Title:   title,
		Book:    s.Title,
		Author:  s.Author,
		Quote:   s.Quote(),
		Comment: comment,
		Chapter: s.Chapter,
		Tags:    tags,
	}
}

// Open loads highlight id and locates it in its book.
func (o *Opener) Open(ctx context.Context, id string) (*Session, error) {
	logger := o.logger().With("highlight", id)

	rec, err := o.Store.Highlight(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	open := o.OpenBook
	if open == nil {
		open = reader.OpenBook
	}
	book, err := open(filepath.Join(o.BooksDir, rec.File))
	if err != nil {
		return nil, fmt.Errorf("open book for highlight %s: %w", id, err)
	}
	defer book.Close()

	if err := reader.Validate(book); err != nil {
		logger.Warn("book has invalid structure", "file", rec.File, "error", err)
	}

	text, err := book.SectionText(rec.ContainerPath)
	if err != nil {
		return nil, fmt.Errorf("highlight %s: %w", id, err)
	}

	doc := sentence.Parse(text)
	span, err := quote.Locate(rec.Text, doc)
	switch {
	case errors.Is(err, quote.ErrOrderingViolation):
		logger.Error("locator ordering violation", "kind", "defect", "section", rec.ContainerPath, "error", err)
		return nil, fmt.Errorf("highlight %s: %w", id, err)
	case err != nil:
		logger.Warn("highlight not found in section", "section", rec.ContainerPath, "error", err)
		return nil, fmt.Errorf("highlight %s: %w", id, err)
	}
	logger.Debug("located highlight", "start", span.Start, "end", span.End, "breaks", span.Breaks())

	s := &Session{
		Record: rec,
		Doc:    doc,
		Cursor: quote.NewCursor(span, quote.DocumentContext{Doc: doc},
			quote.WithContextSentences(o.ContextSentences)),
	}
	s.Title, s.Author = o.bookMetadata(rec, book)
	s.Chapter = o.chapter(logger, book, rec.ContainerPath)
	return s, nil
}

func (o *Opener) bookMetadata(rec kobo.Record, book reader.Book) (title, author string) {
	if o.Metadata != nil {
		if m, ok := o.Metadata.Metadata(rec.File); ok {
			return m.Title, m.Author
		}
	}
	title, author = rec.BookTitle, rec.Author
	if title == "" {
		title, author = book.Title(), book.Author()
	}
	if title == "" {
		title, author = state.ParseFileName(rec.File)
	}
	return title, author
}

func (o *Opener) chapter(logger *slog.Logger, book reader.Book, section string) string {
	toc, err := book.TOC()
	if err != nil {
		logger.Debug("no table of contents", "error", err)
		return ""
	}
	idx := chapter.Build(toc, book.Root())
	title, err := idx.Match(section)
	if err != nil {
		logger.Debug("chapter unresolved", "section", section, "entries", idx.Len())
		return ""
	}
	return title
}

func (o *Opener) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}
