// Package kobo reads highlights from a Kobo e-reader database
// (KoboReader.sqlite). The database is only ever opened read-only.
package kobo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNotEPUB  = errors.New("book is not an epub")
)

// Book is a book with at least one highlight.
type Book struct {
	VolumeID      string
	Title         string
	Author        string
	File          string // base name of the book file on the device
	LastHighlight time.Time
}

// Highlight is one entry of a book's highlight list.
type Highlight struct {
	ID            string
	Text          string
	Created       time.Time
	ContainerPath string
}

// Record is a highlight with the book it belongs to.
type Record struct {
	ID            string
	BookTitle     string
	Author        string
	Text          string
	Created       time.Time
	ContainerPath string // section path inside the book, possibly with a #fragment
	VolumeID      string
	File          string
}

// Store reads a Kobo database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens the database at path read-only.
func Open(path string, opts ...Option) (*Store, error) {
	uri, err := fileURI(path, "ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open kobo database: %w", err)
	}
	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open kobo database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open kobo database %s: %w", path, err)
	}
	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// fileURI returns an SQLite URI for the database file at p. The path is
// escaped so that '?' and '#' in directory names reach SQLite intact.
func fileURI(p, mode string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs // C:/... on windows
	}
	u := url.URL{Scheme: "file", Path: abs, RawQuery: url.Values{"mode": {mode}}.Encode()}
	return u.String(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const booksQuery = `
SELECT content.ContentID, IFNULL(content.Title, ''), IFNULL(content.Attribution, ''),
       MAX(Bookmark.DateCreated)
FROM Bookmark
JOIN content ON content.ContentID = Bookmark.VolumeID AND content.ContentType = 6
WHERE Bookmark.Text IS NOT NULL
GROUP BY content.ContentID
ORDER BY MAX(Bookmark.DateCreated) DESC`

// Books returns the books that have highlights, most recently highlighted
// first.
func (s *Store) Books(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, booksQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		var last sql.NullString
		if err := rows.Scan(&b.VolumeID, &b.Title, &b.Author, &last); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		b.File = fileName(b.VolumeID)
		b.LastHighlight = parseDate(last.String)
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	s.logger.Debug("loaded books", "count", len(books))
	return books, nil
}

const highlightsQuery = `
SELECT BookmarkID, Text, IFNULL(DateCreated, ''), IFNULL(StartContainerPath, '')
FROM Bookmark
WHERE VolumeID = ? AND Text IS NOT NULL
ORDER BY DateCreated`

// Highlights returns the highlights of a book in reading order of creation.
func (s *Store) Highlights(ctx context.Context, volumeID string) ([]Highlight, error) {
	rows, err := s.db.QueryContext(ctx, highlightsQuery, volumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query highlights: %w", err)
	}
	defer rows.Close()

	var out []Highlight
	for rows.Next() {
		var h Highlight
		var created string
		if err := rows.Scan(&h.ID, &h.Text, &created, &h.ContainerPath); err != nil {
			return nil, fmt.Errorf("failed to scan highlight: %w", err)
		}
		h.Text = strings.TrimSpace(h.Text)
		h.Created = parseDate(created)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query highlights: %w", err)
	}
	s.logger.Debug("loaded highlights", "volume", volumeID, "count", len(out))
	return out, nil
}

const highlightQuery = `
SELECT IFNULL(content.Title, ''), IFNULL(content.Attribution, ''), IFNULL(Bookmark.Text, ''),
       IFNULL(Bookmark.DateCreated, ''), IFNULL(Bookmark.StartContainerPath, ''), Bookmark.VolumeID
FROM Bookmark
LEFT OUTER JOIN content ON content.ContentID = Bookmark.VolumeID AND content.ContentType = 6
WHERE Bookmark.BookmarkID = ?`

// Highlight returns the highlight with the given id.
func (s *Store) Highlight(ctx context.Context, id string) (Record, error) {
	r := Record{ID: id}
	var created string
	err := s.db.QueryRowContext(ctx, highlightQuery, id).Scan(
		&r.BookTitle, &r.Author, &r.Text, &created, &r.ContainerPath, &r.VolumeID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("highlight %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to query highlight %s: %w", id, err)
	}

	// Leading whitespace in the stored text breaks anchor matching.
	r.Text = strings.TrimSpace(r.Text)
	r.Created = parseDate(created)
	r.File = fileName(r.VolumeID)
	if !strings.HasSuffix(strings.ToLower(r.File), ".epub") {
		return Record{}, fmt.Errorf("highlight %s in %q: %w", id, r.File, ErrNotEPUB)
	}
	return r, nil
}

// fileName returns the last path element of a volume id such as
// "file:///mnt/onboard/Books/Title.epub".
func fileName(volumeID string) string {
	return path.Base(strings.ReplaceAll(volumeID, "\\", "/"))
}

var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
