package quote

import (
	"strings"

	"github.com/metcalfc/marg/internal/sentence"
)

// Rendering is the display form of a cursor. Before, Quote and After
// concatenate to the loaded text, with the separators around the quote kept
// on the context side.
type Rendering struct {
	Before  string
	Quote   string
	After   string
	Display string
}

// Render recomputes the display strings from the current state.
func (c *Cursor) Render() Rendering {
	var before, quote, after strings.Builder
	s, e := c.start, c.end
	for i := c.lo; i < c.hi(); i++ {
		if i > c.lo {
			sep := sentence.Separator(c.at(i-1), c.at(i))
			switch {
			case s.i >= i:
				before.WriteString(sep)
			case e.i < i:
				after.WriteString(sep)
			default:
				quote.WriteString(sep)
			}
		}

		t := c.text(i)
		from, to := 0, len(t)
		switch {
		case i < s.i:
			from = len(t)
		case i == s.i:
			from = s.off
		}
		switch {
		case i > e.i:
			to = 0
		case i == e.i:
			to = e.off
		}
		to = max(to, from)
		before.WriteString(t[:from])
		quote.WriteString(t[from:to])
		after.WriteString(t[to:])
	}
	r := Rendering{
		Before: before.String(),
		Quote:  quote.String(),
		After:  after.String(),
	}
	r.Display = "..." + r.Before + "|" + r.Quote + "|" + r.After + "..."
	return r
}

// Quote returns the currently selected text.
func (c *Cursor) Quote() string {
	return c.Render().Quote
}

// Flatten returns all loaded text in order. It always equals the section text
// of the range reported by Loaded.
func (c *Cursor) Flatten() string {
	r := c.Render()
	return r.Before + r.Quote + r.After
}
