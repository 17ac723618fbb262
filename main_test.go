//go:build !gui

package main

import (
	"errors"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/metcalfc/marg/internal/tiddler"
)

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func newEditorModel(t *testing.T) (model, *app, *[]string) {
	t.Helper()
	a, copied := newTestApp(t)
	m := newModel(a, options{})
	m, _ = update(t, m, sessionMsg{openTestSession(t, a, "h1")})
	if m.screen != screenEditor {
		t.Fatalf("screen = %v, want editor", m.screen)
	}
	return m, a, copied
}

func TestEditorCursorKeys(t *testing.T) {
	tests := []struct {
		name   string
		keys   string
		quote  string
		status string
	}{
		{"extend above", "b", "Agriculture changed everything. Soil is depleted.", ""},
		{"extend and contract above", "bB", "Soil is depleted.", ""},
		{"extend below", "f", "Soil is depleted. Rivers carry it away.", ""},
		{"extend below across paragraph", "ff", "Soil is depleted. Rivers carry it away.\n\nA second paragraph begins here.", ""},
		{"fine above", "j", ". Soil is depleted.", ""},
		{"fine below", "k", "Soil is depleted. R", ""},
		{"fine below and back", "kK", "Soil is depleted.", ""},
		{"fine above and back", "jjJ", ". Soil is depleted.", ""},
		{"fine contract above", "J", "oil is depleted.", ""},
		{"fine contract both ends", "JK", "oil is depleted", ""},
		{"contract single sentence", "F", "Soil is depleted.", "The quote cannot be empty"},
		{"start of section", "bb", "Agriculture changed everything. Soil is depleted.", "No more text in this section"},
		{"unbound key", "x", "Soil is depleted.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newEditorModel(t)
			for _, r := range tt.keys {
				m, _ = update(t, m, keyRunes(string(r)))
			}
			if got := m.editor.session.Quote(); got != tt.quote {
				t.Errorf("Quote() = %q, want %q", got, tt.quote)
			}
			if m.status != tt.status {
				t.Errorf("status = %q, want %q", m.status, tt.status)
			}
		})
	}
}

func TestEditorFormFocus(t *testing.T) {
	m, _, _ := newEditorModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.editor.focus != 0 {
		t.Fatalf("focus after tab = %d, want 0", m.editor.focus)
	}
	m, _ = update(t, m, keyRunes("b"))
	if got := m.editor.inputs[0].Value(); got != "b" {
		t.Errorf("title = %q, want %q", got, "b")
	}
	if got := m.editor.session.Quote(); got != "Soil is depleted." {
		t.Errorf("typing moved the cursor: %q", got)
	}

	for want := 1; want <= 2; want++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		if m.editor.focus != want {
			t.Fatalf("focus = %d, want %d", m.editor.focus, want)
		}
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.editor.focus != -1 {
		t.Fatalf("focus after cycling = %d, want -1", m.editor.focus)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.editor.focus != -1 || m.screen != screenEditor {
		t.Errorf("esc in a field: focus = %d, screen = %v", m.editor.focus, m.screen)
	}
}

func TestEditorExport(t *testing.T) {
	m, a, _ := newEditorModel(t)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, keyRunes("Soil"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = update(t, m, keyRunes("erosion"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatal("ctrl+s returned no command")
	}
	msg, ok := cmd().(exportedMsg)
	if !ok {
		t.Fatalf("export command returned %T", msg)
	}
	if _, err := os.Stat(msg.path); err != nil {
		t.Fatalf("tiddler not written: %v", err)
	}
	m, _ = update(t, m, msg)
	if !strings.HasPrefix(m.status, "Exported to ") {
		t.Errorf("status = %q", m.status)
	}
	if !a.state.Exported("h1") {
		t.Error("highlight not marked exported")
	}
	if !strings.Contains(m.View(), "exported") {
		t.Error("editor view does not show the exported marker")
	}
}

func TestEditorExportWithoutTitle(t *testing.T) {
	m, _, _ := newEditorModel(t)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	msg, ok := cmd().(errMsg)
	if !ok || !errors.Is(msg.err, tiddler.ErrEmptyTitle) {
		t.Fatalf("export command returned %#v", msg)
	}
	m, _ = update(t, m, msg)
	if !strings.Contains(m.View(), "Enter a title first") {
		t.Errorf("view does not report the missing title")
	}
}

func TestEditorYank(t *testing.T) {
	m, _, copied := newEditorModel(t)

	m, _ = update(t, m, keyRunes("f"))
	m, _ = update(t, m, keyRunes("y"))
	if len(*copied) != 1 || (*copied)[0] != "Soil is depleted. Rivers carry it away." {
		t.Errorf("copied = %q", *copied)
	}
	if m.status != "Quote copied" {
		t.Errorf("status = %q", m.status)
	}
}

func TestEditorBackWithoutLists(t *testing.T) {
	m, _, _ := newEditorModel(t)

	m, cmd := update(t, m, keyRunes("q"))
	if m.screen != screenBooks {
		t.Fatalf("screen = %v, want books", m.screen)
	}
	if cmd == nil {
		t.Fatal("no command to load books")
	}
	if books, ok := cmd().(booksMsg); !ok || len(books) != 2 {
		t.Errorf("load books returned %#v", books)
	}
}

func TestBrowseToEditor(t *testing.T) {
	a, _ := newTestApp(t)
	m := newModel(a, options{})

	msg := m.Init()()
	books, ok := msg.(booksMsg)
	if !ok {
		t.Fatalf("Init command returned %T", msg)
	}
	m, _ = update(t, m, books)
	if got := len(m.books.Items()); got != 2 {
		t.Fatalf("book items = %d, want 2", got)
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	hm, ok := cmd().(highlightsMsg)
	if !ok {
		t.Fatal("enter on a book did not load highlights")
	}
	m, _ = update(t, m, hm)
	if m.screen != screenHighlights || len(m.highlights.Items()) != 2 {
		t.Fatalf("screen = %v with %d highlights", m.screen, len(m.highlights.Items()))
	}

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	sm, ok := cmd().(sessionMsg)
	if !ok {
		t.Fatal("enter on a highlight did not open it")
	}
	m, _ = update(t, m, sm)
	if m.screen != screenEditor || m.editor.session.Record.ID != "h1" {
		t.Fatalf("screen = %v", m.screen)
	}
	if !strings.Contains(m.View(), "Dirt by David R. Montgomery · Erosion") {
		t.Errorf("editor header missing:\n%s", m.View())
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenHighlights {
		t.Errorf("esc from editor: screen = %v, want highlights", m.screen)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenBooks {
		t.Errorf("esc from highlights: screen = %v, want books", m.screen)
	}
}

func TestStartWithID(t *testing.T) {
	a, _ := newTestApp(t)
	m := newModel(a, options{id: "h2"})

	sm, ok := m.Init()().(sessionMsg)
	if !ok {
		t.Fatal("Init did not open the highlight")
	}
	if got := sm.session.Quote(); got != "Rivers carry it away." {
		t.Errorf("Quote() = %q", got)
	}
}

func TestStartWithUnknownID(t *testing.T) {
	a, _ := newTestApp(t)
	m := newModel(a, options{id: "missing"})

	msg, ok := m.Init()().(errMsg)
	if !ok {
		t.Fatal("Init did not fail")
	}
	m, _ = update(t, m, msg)
	if m.err == nil || !strings.Contains(m.View(), "Error:") {
		t.Errorf("error not shown: %q", m.View())
	}
}

func TestHighlightItem(t *testing.T) {
	h := newTestLibrary().highlights["file:///mnt/onboard/dirt.epub"][0]
	h.Text = strings.Repeat("word ", 40)

	item := highlightItem{highlight: h, exported: true}
	if got := []rune(item.Title()); len(got) != 83 || !strings.HasSuffix(string(got), "...") {
		t.Errorf("Title() = %q", item.Title())
	}
	if !strings.HasSuffix(item.Description(), "exported") {
		t.Errorf("Description() = %q", item.Description())
	}
}

func TestHighlightsToggleExported(t *testing.T) {
	a, _ := newTestApp(t)
	m := newModel(a, options{book: "dirt"})

	lib := newTestLibrary()
	m, _ = update(t, m, highlightsMsg{book: lib.books[0], highlights: lib.highlights[lib.books[0].VolumeID]})
	m, _ = update(t, m, keyRunes("x"))

	item, ok := m.highlights.SelectedItem().(highlightItem)
	if !ok || !item.exported {
		t.Fatalf("selected item = %+v", item)
	}
	if !a.state.Exported("h1") {
		t.Error("toggle did not mark the highlight exported")
	}
	m, _ = update(t, m, keyRunes("x"))
	if a.state.Exported("h1") {
		t.Error("second toggle did not clear the mark")
	}
}
