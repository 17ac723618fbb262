//go:build gui

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/metcalfc/marg/internal/session"
)

// quoteSegments renders the cursor as rich text with the quote in bold.
func quoteSegments(s *session.Session) []widget.RichTextSegment {
	r := s.Cursor.Render()
	return []widget.RichTextSegment{
		&widget.TextSegment{Text: "..." + r.Before, Style: widget.RichTextStyleInline},
		&widget.TextSegment{Text: r.Quote, Style: widget.RichTextStyleStrong},
		&widget.TextSegment{Text: r.After + "...", Style: widget.RichTextStyleInline},
	}
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

	ctx := context.Background()
	id := opts.id
	if id == "" {
		if id, err = a.nextHighlight(ctx, opts.book); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	s, err := a.opener.Open(ctx, id)
	if err != nil {
		a.logger.Warn("failed to open highlight", "highlight", id, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fa := fyneapp.New()
	w := fa.NewWindow("marg - " + s.Title)

	header := s.Title
	if s.Author != "" {
		header += " by " + s.Author
	}
	if s.Chapter != "" {
		header += " · " + s.Chapter
	}
	headerLabel := widget.NewLabel(header)
	headerLabel.TextStyle.Bold = true

	text := widget.NewRichText(quoteSegments(s)...)
	text.Wrapping = fyne.TextWrapWord

	statusLabel := widget.NewLabel("")
	statusLabel.Alignment = fyne.TextAlignCenter

	titleEntry := widget.NewEntry()
	titleEntry.SetPlaceHolder("tiddler title")
	tagsEntry := widget.NewEntry()
	tagsEntry.SetPlaceHolder("comma separated")
	notesEntry := widget.NewMultiLineEntry()
	notesEntry.SetPlaceHolder("optional comment")
	notesEntry.SetMinRowsVisible(3)

	updateDisplay := func(status string) {
		text.Segments = quoteSegments(s)
		text.Refresh()
		statusLabel.SetText(status)
	}

	export := func() {
		path, err := a.export(s, titleEntry.Text, tagsEntry.Text, notesEntry.Text)
		if err != nil {
			a.logger.Warn("export failed", "highlight", s.Record.ID, "error", err)
			updateDisplay(describe(err))
			return
		}
		updateDisplay("Exported to " + path)
	}
	exportButton := widget.NewButton("Export", export)

	form := widget.NewForm(
		widget.NewFormItem("Title", titleEntry),
		widget.NewFormItem("Tags", tagsEntry),
		widget.NewFormItem("Notes", notesEntry),
	)

	controlsLabel := widget.NewLabel("B/F: sentence above/below  J/K: character above/below  (shift contracts)  Y: copy  ESC: leave field  CTRL+S: export  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	content := container.NewBorder(
		headerLabel,
		container.NewVBox(form, exportButton, statusLabel, controlsLabel),
		nil, nil,
		container.NewVScroll(text),
	)

	// Typed runes reach the canvas only while no entry has focus.
	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case 'y', 'Y':
			if err := a.copy(s.Quote()); err != nil {
				updateDisplay(describe(err))
				return
			}
			updateDisplay("Quote copied")
		case 'q', 'Q':
			fa.Quit()
		default:
			op, ok := cursorOpFor(string(r))
			if !ok {
				return
			}
			status := ""
			if err := op.run(s.Cursor); err != nil {
				status = describe(err)
			}
			updateDisplay(status)
		}
	})

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if key.Name == fyne.KeyEscape {
			w.Canvas().Unfocus()
		}
	})

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl},
		func(fyne.Shortcut) { export() })

	w.Resize(fyne.NewSize(800, 600))
	w.SetContent(content)
	w.ShowAndRun()
	return 0
}
