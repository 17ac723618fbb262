// Package tiddler writes exported highlights as TiddlyWiki .tid files.
//
// Every highlight tiddler belongs to a book tiddler, created on the first export
// from that book together with a "fhl-<book>" tiddler listing all of the
// book's quotes in order.
package tiddler

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/atotto/clipboard"
)

var (
	ErrEmptyTitle = errors.New("tiddler title is empty")
	ErrEmptyQuote = errors.New("quote is empty")
	ErrExists     = errors.New("tiddler already exists")
)

const countField = "nbr_of_highlights"

// Note is one highlight to export.
type Note struct {
	Title   string
	Book    string
	Author  string
	Quote   string
	Comment string
	Chapter string
	Tags    []string
}

// Exporter writes tiddlers into Dir.
type Exporter struct {
	Dir       string
	Creator   string
	Now       func() time.Time
	Clipboard func(string) error
	Logger    *slog.Logger
}

// NewExporter returns an Exporter for dir using the system clipboard.
func NewExporter(dir, creator string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		Dir:       dir,
		Creator:   creator,
		Now:       time.Now,
		Clipboard: clipboard.WriteAll,
		Logger:    logger,
	}
}

// Exists reports whether a tiddler with the given title exists.
func (e *Exporter) Exists(title string) bool {
	_, err := os.Stat(e.path(title))
	return err == nil
}

// Export writes the highlight tiddler for n and returns its path. The book
// tiddler is created on the first export of a book; later exports bump its
// highlight count, which also orders the quote. The book tiddler is only
// touched once the highlight tiddler is written.
func (e *Exporter) Export(n Note) (string, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Book = strings.TrimSpace(n.Book)
	n.Quote = strings.TrimSpace(n.Quote)
	if n.Title == "" {
		return "", ErrEmptyTitle
	}
	if n.Quote == "" {
		return "", ErrEmptyQuote
	}
	if n.Book == "" {
		return "", fmt.Errorf("%w: book title", ErrEmptyTitle)
	}
	if e.Exists(n.Title) {
		return "", fmt.Errorf("%w: %s", ErrExists, n.Title)
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", err
	}

	created := e.timestamp()
	order := 1
	bookExists := e.Exists(n.Book)
	if bookExists {
		count, err := e.readCount(n.Book)
		if err != nil {
			return "", err
		}
		order = count + 1
	}

	tags := append([]string{"book-quote", n.Book}, n.Tags...)
	path := e.path(n.Title)
	err := e.write(path, highlightTmpl, map[string]any{
		"Created": created,
		"Creator": e.Creator,
		"Tags":    formatTags(tags),
		"Title":   field(n.Title),
		"Chapter": field(n.Chapter),
		"Order":   fmt.Sprintf("%02d", order),
		"Comment": strings.TrimSpace(n.Comment),
		"Quote":   n.Quote,
	})
	if err != nil {
		return "", err
	}

	if bookExists {
		err = e.setCount(n.Book, order)
	} else {
		err = e.createBook(n.Book, n.Author, created)
	}
	if err != nil {
		return path, fmt.Errorf("update book tiddler %s: %w", n.Book, err)
	}
	e.Logger.Info("exported highlight", "title", n.Title, "book", n.Book, "order", order)
	return path, nil
}

func (e *Exporter) createBook(book, author, created string) error {
	data := map[string]any{
		"Created": created,
		"Creator": e.Creator,
		"Book":    field(book),
		"Author":  field(author),
	}
	if err := e.write(e.path(book), bookTmpl, data); err != nil {
		return err
	}
	e.Logger.Info("created book tiddler", "book", book)
	if e.Clipboard != nil {
		if err := e.Clipboard(book); err != nil {
			e.Logger.Warn("failed to copy to clipboard", "error", err)
		}
	}
	if err := e.write(e.path("fhl-"+book), fhlTmpl, data); err != nil {
		return err
	}
	e.Logger.Info("created fhl tiddler", "book", book)
	return nil
}

// readCount returns the highlight count of a book tiddler.
func (e *Exporter) readCount(book string) (int, error) {
	data, err := os.ReadFile(e.path(book))
	if err != nil {
		return 0, err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), countField+":"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, fmt.Errorf("book tiddler %s: bad %s: %w", book, countField, err)
			}
			return n, nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("book tiddler %s has no %s field", book, countField)
}

// setCount rewrites the highlight count of a book tiddler.
func (e *Exporter) setCount(book string, count int) error {
	path := e.path(book)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	done := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if _, ok := strings.CutPrefix(line, countField+":"); ok && !done {
			line = countField + ": " + strconv.Itoa(count)
			done = true
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.WriteFile(path, out.Bytes(), 0644)
}

func (e *Exporter) write(path string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, filepath.Base(path))
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *Exporter) path(title string) string {
	return filepath.Join(e.Dir, strings.ReplaceAll(title, "/", "_")+".tid")
}

// timestamp formats the current time the way TiddlyWiki stores it.
func (e *Exporter) timestamp() string {
	t := e.Now().UTC()
	return t.Format("20060102150405") + fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
}

// formatTags renders a TiddlyWiki tag list; tags with spaces are bracketed.
func formatTags(tags []string) string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.ContainsAny(t, " \t") {
			t = "[[" + t + "]]"
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// field flattens a header value to one line.
func field(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
