//go:build !gui

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/metcalfc/marg/internal/kobo"
	"github.com/metcalfc/marg/internal/session"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFAA00"))

	contextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	quoteStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Width(7)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	exportedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)
)

type screen int

const (
	screenBooks screen = iota
	screenHighlights
	screenEditor
)

type keyMap struct {
	Cursor key.Binding
	Fine   key.Binding
	Next   key.Binding
	Export key.Binding
	Yank   key.Binding
	Blur   key.Binding
	Back   key.Binding
	Open   key.Binding
	Toggle key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Cursor, k.Fine, k.Next, k.Export, k.Yank, k.Back}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Cursor, k.Fine}, {k.Next, k.Export, k.Yank, k.Back}}
}

var keys = keyMap{
	Cursor: key.NewBinding(key.WithKeys("b", "B", "f", "F"), key.WithHelp("b/B f/F", "sentence above/below")),
	Fine:   key.NewBinding(key.WithKeys("j", "J", "k", "K"), key.WithHelp("j/J k/K", "character above/below")),
	Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "title/tags/notes")),
	Export: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "export")),
	Yank:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy quote")),
	Blur:   key.NewBinding(key.WithKeys("esc")),
	Back:   key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc/q", "back")),
	Open:   key.NewBinding(key.WithKeys("enter")),
	Toggle: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "toggle exported")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c")),
}

type bookItem struct{ book kobo.Book }

func (i bookItem) Title() string { return i.book.Title }
func (i bookItem) Description() string {
	return fmt.Sprintf("%s · last highlight %s", i.book.Author, i.book.LastHighlight.Format("2006-01-02"))
}
func (i bookItem) FilterValue() string { return i.book.Title + " " + i.book.Author }

type highlightItem struct {
	highlight kobo.Highlight
	exported  bool
}

func (i highlightItem) Title() string {
	text := strings.Join(strings.Fields(i.highlight.Text), " ")
	if r := []rune(text); len(r) > 80 {
		text = string(r[:80]) + "..."
	}
	return text
}

func (i highlightItem) Description() string {
	d := i.highlight.Created.Format("2006-01-02 15:04")
	if i.exported {
		d += " · exported"
	}
	return d
}

func (i highlightItem) FilterValue() string { return i.highlight.Text }

type booksMsg []kobo.Book

type highlightsMsg struct {
	book       kobo.Book
	highlights []kobo.Highlight
}

type sessionMsg struct{ session *session.Session }

type exportedMsg struct{ path string }

type errMsg struct{ err error }

// editor holds the highlight being edited and its export form.
type editor struct {
	session *session.Session
	inputs  []textinput.Model // title, tags, notes
	focus   int               // index into inputs, -1 while editing the quote
}

var inputLabels = []string{"Title", "Tags", "Notes"}

func newEditor(s *session.Session) editor {
	placeholders := []string{"tiddler title", "comma separated", "optional comment"}
	inputs := make([]textinput.Model, len(placeholders))
	for i, p := range placeholders {
		ti := textinput.New()
		ti.Placeholder = p
		ti.Prompt = ""
		inputs[i] = ti
	}
	return editor{session: s, inputs: inputs, focus: -1}
}

func (e *editor) cycle() tea.Cmd {
	if e.focus >= 0 {
		e.inputs[e.focus].Blur()
	}
	e.focus++
	if e.focus == len(e.inputs) {
		e.focus = -1
		return nil
	}
	return e.inputs[e.focus].Focus()
}

func (e *editor) blur() {
	if e.focus >= 0 {
		e.inputs[e.focus].Blur()
	}
	e.focus = -1
}

type model struct {
	app        *app
	help       help.Model
	screen     screen
	books      list.Model
	highlights list.Model
	book       kobo.Book
	editor     editor
	status     string
	err        error
	startID    string
	startBook  string
	width      int
	height     int
}

func newModel(a *app, opts options) model {
	books := list.New(nil, list.NewDefaultDelegate(), 80, 22)
	books.Title = "Books"
	highlights := list.New(nil, list.NewDefaultDelegate(), 80, 22)
	highlights.Title = "Highlights"
	highlights.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{keys.Toggle} }
	return model{
		app:        a,
		help:       help.New(),
		books:      books,
		highlights: highlights,
		startID:    opts.id,
		startBook:  opts.book,
		width:      80,
		height:     24,
	}
}

func (m model) Init() tea.Cmd {
	if m.startID != "" {
		return m.openSession(m.startID)
	}
	return m.loadBooks()
}

func (m model) loadBooks() tea.Cmd {
	return func() tea.Msg {
		books, err := m.app.books(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return booksMsg(books)
	}
}

func (m model) loadHighlights(book kobo.Book) tea.Cmd {
	return func() tea.Msg {
		hs, err := m.app.library.Highlights(context.Background(), book.VolumeID)
		if err != nil {
			return errMsg{err}
		}
		return highlightsMsg{book: book, highlights: hs}
	}
}

func (m model) openSession(id string) tea.Cmd {
	return func() tea.Msg {
		s, err := m.app.opener.Open(context.Background(), id)
		if err != nil {
			return errMsg{err}
		}
		return sessionMsg{s}
	}
}

func (m model) exportSession() tea.Cmd {
	e := m.editor
	title, tags, notes := e.inputs[0].Value(), e.inputs[1].Value(), e.inputs[2].Value()
	return func() tea.Msg {
		path, err := m.app.export(e.session, title, tags, notes)
		if err != nil {
			return errMsg{err}
		}
		return exportedMsg{path}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.books.SetSize(msg.Width, msg.Height-2)
		m.highlights.SetSize(msg.Width, msg.Height-2)
		m.help.Width = msg.Width
		return m, nil

	case booksMsg:
		items := make([]list.Item, len(msg))
		for i, b := range msg {
			items[i] = bookItem{b}
		}
		cmd := m.books.SetItems(items)
		if m.startBook != "" {
			query := m.startBook
			m.startBook = ""
			book, err := kobo.FindBook(msg, query)
			if err != nil {
				m.err = fmt.Errorf("book %q: %w", query, err)
				return m, cmd
			}
			return m, tea.Batch(cmd, m.loadHighlights(book))
		}
		return m, cmd

	case highlightsMsg:
		m.book = msg.book
		items := m.highlightItems(msg.highlights)
		m.highlights.Title = msg.book.Title
		m.screen = screenHighlights
		m.err = nil
		return m, m.highlights.SetItems(items)

	case refreshMsg:
		items := m.highlightItems(msg.highlights)
		return m, m.highlights.SetItems(items)

	case sessionMsg:
		m.editor = newEditor(msg.session)
		m.screen = screenEditor
		m.status = ""
		m.err = nil
		return m, nil

	case exportedMsg:
		m.status = "Exported to " + msg.path
		m.err = nil
		if m.book.VolumeID != "" {
			return m, m.loadHighlightsKeepScreen()
		}
		return m, nil

	case errMsg:
		m.app.logger.Warn("operation failed", "error", msg.err)
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		switch m.screen {
		case screenBooks:
			return m.updateBooks(msg)
		case screenHighlights:
			return m.updateHighlights(msg)
		case screenEditor:
			return m.updateEditor(msg)
		}
	}

	return m, nil
}

// loadHighlightsKeepScreen refreshes the exported markers without leaving the
// editor.
func (m model) loadHighlightsKeepScreen() tea.Cmd {
	load := m.loadHighlights(m.book)
	return func() tea.Msg {
		msg := load()
		if hm, ok := msg.(highlightsMsg); ok {
			return refreshMsg(hm)
		}
		return msg
	}
}

type refreshMsg highlightsMsg

func (m model) highlightItems(hs []kobo.Highlight) []list.Item {
	items := make([]list.Item, len(hs))
	for i, h := range hs {
		items[i] = highlightItem{highlight: h, exported: m.app.state.Exported(h.ID)}
	}
	return items
}

func (m model) updateBooks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.books.FilterState() == list.Filtering
	switch {
	case !filtering && key.Matches(msg, keys.Open):
		if item, ok := m.books.SelectedItem().(bookItem); ok {
			return m, m.loadHighlights(item.book)
		}
		return m, nil
	case !filtering && msg.String() == "q":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.books, cmd = m.books.Update(msg)
	return m, cmd
}

func (m model) updateHighlights(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.highlights.FilterState() == list.Filtering
	switch {
	case !filtering && key.Matches(msg, keys.Open):
		if item, ok := m.highlights.SelectedItem().(highlightItem); ok {
			return m, m.openSession(item.highlight.ID)
		}
		return m, nil
	case !filtering && key.Matches(msg, keys.Toggle):
		item, ok := m.highlights.SelectedItem().(highlightItem)
		if !ok {
			return m, nil
		}
		exported, err := m.app.toggleExported(item.highlight.ID)
		if err != nil {
			m.err = err
			return m, nil
		}
		item.exported = exported
		return m, m.highlights.SetItem(m.highlights.GlobalIndex(), item)
	case !filtering && m.highlights.FilterState() == list.Unfiltered && key.Matches(msg, keys.Back):
		m.screen = screenBooks
		m.err = nil
		if len(m.books.Items()) == 0 {
			return m, m.loadBooks()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.highlights, cmd = m.highlights.Update(msg)
	return m, cmd
}

func (m model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := &m.editor
	switch {
	case key.Matches(msg, keys.Export):
		return m, m.exportSession()

	case key.Matches(msg, keys.Next):
		return m, e.cycle()

	case e.focus >= 0:
		if key.Matches(msg, keys.Blur) {
			e.blur()
			return m, nil
		}
		var cmd tea.Cmd
		e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
		return m, cmd

	case key.Matches(msg, keys.Back):
		m.status = ""
		m.err = nil
		if len(m.highlights.Items()) > 0 {
			m.screen = screenHighlights
			return m, nil
		}
		m.screen = screenBooks
		if len(m.books.Items()) == 0 {
			return m, m.loadBooks()
		}
		return m, nil

	case key.Matches(msg, keys.Yank):
		if err := m.app.copy(e.session.Quote()); err != nil {
			m.err = err
			return m, nil
		}
		m.status = "Quote copied"
		return m, nil
	}

	if op, ok := cursorOpFor(msg.String()); ok {
		m.err = nil
		m.status = ""
		if err := op.run(e.session.Cursor); err != nil {
			m.status = describe(err)
		}
	}
	return m, nil
}

func (m model) View() string {
	var body string
	switch m.screen {
	case screenBooks:
		body = m.books.View()
	case screenHighlights:
		body = m.highlights.View()
	case screenEditor:
		body = m.editorView()
	}

	var foot string
	switch {
	case m.err != nil:
		foot = errorStyle.Render(describe(m.err))
	case m.status != "":
		foot = statusStyle.Render(m.status)
	}
	return body + "\n" + foot
}

func (m model) editorView() string {
	e := m.editor
	if e.session == nil {
		return ""
	}
	s := e.session

	header := s.Title
	if s.Author != "" {
		header += " by " + s.Author
	}
	if s.Chapter != "" {
		header += " · " + s.Chapter
	}

	r := s.Cursor.Render()
	text := contextStyle.Render("..."+r.Before) +
		quoteStyle.Render(r.Quote) +
		contextStyle.Render(r.After+"...")
	wrapped := lipgloss.NewStyle().Width(max(m.width-2, 20)).Render(text)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n\n")
	sb.WriteString(wrapped)
	sb.WriteString("\n\n")
	for i, in := range e.inputs {
		sb.WriteString(labelStyle.Render(inputLabels[i]))
		sb.WriteString(in.View())
		sb.WriteString("\n")
	}
	if m.app.state.Exported(s.Record.ID) {
		sb.WriteString(exportedStyle.Render("exported"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(keys))
	return sb.String()
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Try: marg -h")
		return 1
	}

	if opts.showVersion {
		fmt.Printf("marg %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}

	a, err := newApp(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	if done, err := a.runCorrection(opts, os.Stdout); done {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	p := tea.NewProgram(newModel(a, opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		a.logger.Error("program failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
