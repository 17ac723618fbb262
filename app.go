package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/metcalfc/marg/internal/config"
	"github.com/metcalfc/marg/internal/kobo"
	"github.com/metcalfc/marg/internal/quote"
	"github.com/metcalfc/marg/internal/reader"
	"github.com/metcalfc/marg/internal/session"
	"github.com/metcalfc/marg/internal/state"
	"github.com/metcalfc/marg/internal/tiddler"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type options struct {
	configPath  string
	book        string
	id          string
	logLevel    string
	setTitle    string
	setAuthor   string
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("marg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	fs.StringVar(&opts.book, "book", "", "Open the highlights of the book best matching this title")
	fs.StringVar(&opts.id, "id", "", "Edit the highlight with this bookmark id")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&opts.setTitle, "set-title", "", "With -book, store a corrected title for the book and exit")
	fs.StringVar(&opts.setAuthor, "set-author", "", "With -book, store a corrected author for the book and exit")
	fs.BoolVar(&opts.showVersion, "v", false, "Show version information")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Marg - Kobo highlight editor\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  marg [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  marg                      Browse books with highlights\n")
		fmt.Fprintf(stderr, "  marg -book dirt           Browse the highlights of \"Dirt\"\n")
		fmt.Fprintf(stderr, "  marg -id 3f2a...          Edit one highlight\n")
		fmt.Fprintf(stderr, "  marg -book dirt -set-title \"Dirt: The Erosion of Civilizations\"\n")
		fmt.Fprintf(stderr, "\nEditor keys:\n")
		fmt.Fprintf(stderr, "  b/B  f/F  Extend/contract the quote above/below by a sentence\n")
		fmt.Fprintf(stderr, "  j/J  k/K  Extend/contract the quote above/below by a character\n")
		fmt.Fprintf(stderr, "  TAB       Cycle title, tags and notes\n")
		fmt.Fprintf(stderr, "  CTRL+S    Export tiddler\n")
		fmt.Fprintf(stderr, "  Y         Copy quote\n")
		fmt.Fprintf(stderr, "  ESC/Q     Back\n")
		fmt.Fprintf(stderr, "  X         Toggle the exported mark (highlight list)\n")
		fmt.Fprintf(stderr, "\nSupported formats: %s\n", strings.Join(reader.SupportedFormats(), ", "))
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return opts, nil
}

// library is the part of the Kobo store the front ends use.
type library interface {
	session.HighlightSource
	Books(ctx context.Context) ([]kobo.Book, error)
	Highlights(ctx context.Context, volumeID string) ([]kobo.Highlight, error)
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	library  library
	state    *state.StateStore
	exporter *tiddler.Exporter
	opener   *session.Opener
	copy     func(string) error
	closers  []io.Closer
}

func newApp(opts options) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := state.NewStateStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	logFile, err := openLog(filepath.Dir(st.Path()))
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: cfg.Level()}))
	logger.Info("starting", "version", version, "kobo_db", cfg.KoboDB)

	store, err := kobo.Open(cfg.KoboDB, kobo.WithLogger(logger))
	if err != nil {
		logFile.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		library:  store,
		state:    st,
		exporter: tiddler.NewExporter(cfg.TiddlersDir, cfg.Creator, logger),
		copy:     clipboard.WriteAll,
		closers:  []io.Closer{store, logFile},
	}
	a.opener = &session.Opener{
		Store:            store,
		BooksDir:         cfg.BooksDir,
		Metadata:         st,
		ContextSentences: cfg.ContextSentences,
		Logger:           logger,
	}
	return a, nil
}

// openLog opens marg.log in dir. The terminal belongs to the UI, so logs go to
// a file.
func openLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "marg.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// books returns the books with highlights, with stored title corrections
// applied and missing titles taken from the file name.
func (a *app) books(ctx context.Context) ([]kobo.Book, error) {
	books, err := a.library.Books(ctx)
	if err != nil {
		return nil, err
	}
	for i, b := range books {
		if md, ok := a.state.Metadata(b.File); ok {
			books[i].Title, books[i].Author = md.Title, md.Author
		} else if b.Title == "" {
			md := a.state.ResolveMetadata(b.File)
			books[i].Title, books[i].Author = md.Title, md.Author
		}
	}
	return books, nil
}

// correctBook stores a title and author for the book matching query. An empty
// title or author keeps the current value.
func (a *app) correctBook(ctx context.Context, query, title, author string) (kobo.Book, error) {
	if query == "" {
		return kobo.Book{}, errors.New("-set-title and -set-author need -book")
	}
	books, err := a.books(ctx)
	if err != nil {
		return kobo.Book{}, err
	}
	book, err := kobo.FindBook(books, query)
	if err != nil {
		return kobo.Book{}, err
	}
	if title != "" {
		book.Title = title
	}
	if author != "" {
		book.Author = author
	}
	if err := a.state.SetMetadata(book.File, book.Title, book.Author); err != nil {
		return kobo.Book{}, err
	}
	a.logger.Info("stored book metadata", "file", book.File, "title", book.Title, "author", book.Author)
	return book, nil
}

// runCorrection handles -set-title and -set-author. It reports whether they
// were given.
func (a *app) runCorrection(opts options, w io.Writer) (bool, error) {
	if opts.setTitle == "" && opts.setAuthor == "" {
		return false, nil
	}
	book, err := a.correctBook(context.Background(), opts.book, opts.setTitle, opts.setAuthor)
	if err != nil {
		return true, err
	}
	fmt.Fprintf(w, "%s: %s by %s\n", book.File, book.Title, book.Author)
	return true, nil
}

// toggleExported flips the exported mark of a highlight and returns the new
// state.
func (a *app) toggleExported(id string) (bool, error) {
	if a.state.Exported(id) {
		return false, a.state.ClearExported(id)
	}
	return true, a.state.MarkExported(id, time.Now())
}

// nextHighlight returns the first unexported highlight of the book matching
// query, or of the most recently highlighted book when query is empty.
func (a *app) nextHighlight(ctx context.Context, query string) (string, error) {
	books, err := a.books(ctx)
	if err != nil {
		return "", err
	}
	if len(books) == 0 {
		return "", fmt.Errorf("no books with highlights: %w", kobo.ErrNotFound)
	}
	book := books[0]
	if query != "" {
		if book, err = kobo.FindBook(books, query); err != nil {
			return "", err
		}
	}
	hs, err := a.library.Highlights(ctx, book.VolumeID)
	if err != nil {
		return "", err
	}
	for _, h := range hs {
		if !a.state.Exported(h.ID) {
			return h.ID, nil
		}
	}
	return "", fmt.Errorf("every highlight of %q is exported: %w", book.Title, kobo.ErrNotFound)
}

// export writes the session as a tiddler and records the highlight as
// exported.
func (a *app) export(s *session.Session, title, tags, comment string) (string, error) {
	path, err := a.exporter.Export(s.Note(strings.TrimSpace(title), strings.TrimSpace(comment), splitTags(tags)))
	if err != nil {
		return "", err
	}
	if err := a.state.MarkExported(s.Record.ID, time.Now()); err != nil {
		a.logger.Warn("failed to record export", "highlight", s.Record.ID, "error", err)
	}
	a.logger.Info("exported highlight", "highlight", s.Record.ID, "path", path)
	return path, nil
}

func splitTags(s string) []string {
	var tags []string
	for t := range strings.SplitSeq(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

type cursorOp struct {
	key  string
	help string
	run  func(*quote.Cursor) error
}

var cursorOps = []cursorOp{
	{"b", "extend above", func(c *quote.Cursor) error { return c.ExtendAbove(false) }},
	{"B", "contract above", func(c *quote.Cursor) error { return c.ContractAbove(false) }},
	{"f", "extend below", func(c *quote.Cursor) error { return c.ExtendBelow(false) }},
	{"F", "contract below", func(c *quote.Cursor) error { return c.ContractBelow(false) }},
	{"j", "extend above by a character", func(c *quote.Cursor) error { return c.ExtendAbove(true) }},
	{"J", "contract above by a character", func(c *quote.Cursor) error { return c.ContractAbove(true) }},
	{"k", "extend below by a character", func(c *quote.Cursor) error { return c.ExtendBelow(true) }},
	{"K", "contract below by a character", func(c *quote.Cursor) error { return c.ContractBelow(true) }},
}

func cursorOpFor(key string) (cursorOp, bool) {
	for _, op := range cursorOps {
		if op.key == key {
			return op, true
		}
	}
	return cursorOp{}, false
}

// describe turns an error into a status line.
func describe(err error) string {
	switch {
	case errors.Is(err, quote.ErrContextExhausted):
		return "No more text in this section"
	case errors.Is(err, quote.ErrEmptyQuote):
		return "The quote cannot be empty"
	case errors.Is(err, tiddler.ErrEmptyTitle):
		return "Enter a title first"
	case errors.Is(err, tiddler.ErrExists):
		return "A tiddler with this title already exists"
	case errors.Is(err, quote.ErrAnchorNotFound):
		return "Highlight not found in its section: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
