package quote

import (
	"slices"
	"unicode/utf8"

	"github.com/metcalfc/marg/internal/sentence"
)

// DefaultContextSentences is how many sentences a new cursor loads on each
// side of the quote.
const DefaultContextSentences = 2

// Context supplies the sentences around a quote on demand.
type Context interface {
	// Before returns the sentence preceding flat index i.
	Before(i int) (sentence.Sentence, error)
	// After returns the sentence following flat index i.
	After(i int) (sentence.Sentence, error)
}

// DocumentContext serves context from a parsed document, crossing paragraph
// boundaries when a paragraph runs out.
type DocumentContext struct {
	Doc *sentence.Document
}

func (c DocumentContext) Before(i int) (sentence.Sentence, error) {
	return c.at(i - 1)
}

func (c DocumentContext) After(i int) (sentence.Sentence, error) {
	return c.at(i + 1)
}

func (c DocumentContext) at(i int) (sentence.Sentence, error) {
	s, ok := c.Doc.At(i)
	if !ok {
		return sentence.Sentence{}, ErrContextRefillFailed
	}
	return s, nil
}

// State is a snapshot of a cursor.
//
// FineBefore is the selected tail of the last Before sentence and FineAfter
// the selected head of the first After sentence. When the selection lies
// inside a single sentence with text deselected on both sides, that sentence
// is split: its head ends Before, the selection is FineBefore and its tail
// starts After.
type State struct {
	Before     []sentence.Sentence // nearest last
	FineBefore string
	Quote      []sentence.Sentence
	FineAfter  string
	After      []sentence.Sentence // nearest first
}

// mark is a byte position inside the loaded sentence with flat index i.
type mark struct {
	i, off int
}

// Cursor edits the boundaries of a located quote.
//
// The selection runs from start, the first selected byte, to end, one past
// the last selected byte. start.off is always short of its sentence length
// and end.off always positive, so both marks sit inside a sentence.
//
// Every operation moves at most one unit: a whole sentence in coarse mode, a
// single rune (or a rune fused with an adjacent space) in fine mode. No
// operation creates, drops or duplicates text: Flatten always returns the
// same text as the loaded range of the section.
type Cursor struct {
	ctx   Context
	sents []sentence.Sentence // loaded sentences; sents[0] has flat index lo
	lo    int
	start mark
	end   mark
	load  int
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithContextSentences sets how many sentences are preloaded on each side.
func WithContextSentences(n int) Option {
	return func(c *Cursor) {
		if n >= 0 {
			c.load = n
		}
	}
}

// NewCursor starts editing span, drawing surrounding text from ctx.
func NewCursor(span Span, ctx Context, opts ...Option) *Cursor {
	c := &Cursor{
		ctx:   ctx,
		sents: slices.Clone(span.Sentences),
		lo:    span.Start,
		load:  DefaultContextSentences,
	}
	c.start = mark{span.Start, 0}
	if n := len(span.Sentences); n > 0 {
		c.end = mark{span.Start + n - 1, len(span.Sentences[n-1].Text)}
	}
	for _, opt := range opts {
		opt(c)
	}
	for range c.load {
		if !c.loadAbove() {
			break
		}
	}
	for range c.load {
		if !c.loadBelow() {
			break
		}
	}
	return c
}

// Loaded returns the flat range of the section the cursor holds.
func (c *Cursor) Loaded() (lo, hi int) {
	return c.lo, c.hi()
}

func (c *Cursor) hi() int { return c.lo + len(c.sents) }

func (c *Cursor) at(i int) sentence.Sentence { return c.sents[i-c.lo] }

func (c *Cursor) text(i int) string { return c.sents[i-c.lo].Text }

// CanExtendAbove reports whether context is loaded above the quote.
func (c *Cursor) CanExtendAbove() bool {
	return c.start.i > c.lo || c.start.off > 0
}

// CanExtendBelow reports whether context is loaded below the quote.
func (c *Cursor) CanExtendBelow() bool {
	return c.end.i < c.hi()-1 || c.end.off < len(c.text(c.end.i))
}

// ExtendAbove widens the quote at its start. A coarse step completes a
// partially selected sentence before taking the next one.
func (c *Cursor) ExtendAbove(fine bool) error {
	if !c.CanExtendAbove() && !c.loadAbove() {
		return ErrContextExhausted
	}
	switch {
	case c.start.off > 0 && fine:
		c.start.off -= tailUnit(c.text(c.start.i)[:c.start.off])
	case c.start.off > 0:
		c.start.off = 0
	case fine:
		t := c.text(c.start.i - 1)
		c.start = mark{c.start.i - 1, len(t) - tailUnit(t)}
	default:
		c.start = mark{c.start.i - 1, 0}
	}
	if !c.CanExtendAbove() {
		c.loadAbove()
	}
	return nil
}

// ExtendBelow widens the quote at its end.
func (c *Cursor) ExtendBelow(fine bool) error {
	if !c.CanExtendBelow() && !c.loadBelow() {
		return ErrContextExhausted
	}
	t := c.text(c.end.i)
	switch {
	case c.end.off < len(t) && fine:
		c.end.off += headUnit(t[c.end.off:])
	case c.end.off < len(t):
		c.end.off = len(t)
	case fine:
		c.end = mark{c.end.i + 1, headUnit(c.text(c.end.i + 1))}
	default:
		c.end = mark{c.end.i + 1, len(c.text(c.end.i + 1))}
	}
	if !c.CanExtendBelow() {
		c.loadBelow()
	}
	return nil
}

// ContractAbove narrows the quote at its start. It is the inverse of
// ExtendAbove at the same granularity; a coarse step drops a partially
// selected sentence whole.
func (c *Cursor) ContractAbove(fine bool) error {
	next := mark{c.start.i + 1, 0}
	if fine {
		t := c.text(c.start.i)
		if off := c.start.off + returnHeadUnit(t[c.start.off:]); off < len(t) {
			next.i, next.off = c.start.i, off
		}
	}
	if !selected(next, c.end) {
		return ErrEmptyQuote
	}
	c.start = next
	return nil
}

// ContractBelow narrows the quote at its end. It is the inverse of
// ExtendBelow at the same granularity.
func (c *Cursor) ContractBelow(fine bool) error {
	if fine {
		t := c.text(c.end.i)
		if off := c.end.off - returnTailUnit(t[:c.end.off]); off > 0 {
			return c.setEnd(mark{c.end.i, off})
		}
	}
	if c.end.i-1 < c.start.i {
		return ErrEmptyQuote
	}
	return c.setEnd(mark{c.end.i - 1, len(c.text(c.end.i - 1))})
}

func (c *Cursor) setEnd(next mark) error {
	if !selected(c.start, next) {
		return ErrEmptyQuote
	}
	c.end = next
	return nil
}

// selected reports whether the range from start to end holds any text.
func selected(start, end mark) bool {
	return start.i < end.i || start.i == end.i && start.off < end.off
}

// State returns a snapshot of the cursor.
func (c *Cursor) State() State {
	var st State
	s, e := c.start, c.end
	for i := c.lo; i < s.i; i++ {
		st.Before = append(st.Before, c.at(i))
	}
	first, last := s.i, e.i
	if s.off > 0 {
		head, tail := split(c.at(s.i), s.off)
		st.Before = append(st.Before, head)
		st.FineBefore = tail.Text
		if s.i == e.i {
			st.FineBefore = tail.Text[:e.off-s.off]
		}
		first++
	}
	if e.off < len(c.text(e.i)) {
		head, tail := split(c.at(e.i), e.off)
		if s.i != e.i || s.off == 0 {
			st.FineAfter = head.Text
		}
		st.After = append(st.After, tail)
		last--
	}
	for i := first; i <= last; i++ {
		st.Quote = append(st.Quote, c.at(i))
	}
	for i := e.i + 1; i < c.hi(); i++ {
		st.After = append(st.After, c.at(i))
	}
	return st
}

// split cuts s at byte off.
func split(s sentence.Sentence, off int) (head, tail sentence.Sentence) {
	head, tail = s, s
	head.Text = s.Text[:off]
	tail.Text = s.Text[off:]
	tail.Offset += off
	return head, tail
}

func (c *Cursor) loadAbove() bool {
	s, err := c.ctx.Before(c.lo)
	if err != nil {
		return false
	}
	c.lo--
	c.sents = slices.Insert(c.sents, 0, s)
	return true
}

func (c *Cursor) loadBelow() bool {
	s, err := c.ctx.After(c.hi() - 1)
	if err != nil {
		return false
	}
	c.sents = append(c.sents, s)
	return true
}

// Units are runes, except that a single space is never left at the edge of a
// fine buffer: a space is moved together with the non-space rune beyond it.

// tailUnit is the byte length of the unit peeled off the end of s.
func tailUnit(s string) int {
	r, n := utf8.DecodeLastRuneInString(s)
	if r == ' ' {
		if r2, n2 := utf8.DecodeLastRuneInString(s[:len(s)-n]); n2 > 0 && r2 != ' ' {
			return n + n2
		}
	}
	return n
}

// headUnit is the byte length of the unit peeled off the start of s.
func headUnit(s string) int {
	r, n := utf8.DecodeRuneInString(s)
	if r == ' ' {
		if r2, n2 := utf8.DecodeRuneInString(s[n:]); n2 > 0 && r2 != ' ' {
			return n + n2
		}
	}
	return n
}

// returnHeadUnit is the byte length of the unit handed back from the start of
// a fine buffer; it undoes tailUnit.
func returnHeadUnit(s string) int {
	r, n := utf8.DecodeRuneInString(s)
	if r != ' ' {
		if r2, n2 := utf8.DecodeRuneInString(s[n:]); r2 == ' ' && n2 > 0 {
			return n + n2
		}
	}
	return n
}

// returnTailUnit is the byte length of the unit handed back from the end of a
// fine buffer; it undoes headUnit.
func returnTailUnit(s string) int {
	r, n := utf8.DecodeLastRuneInString(s)
	if r != ' ' {
		if r2, n2 := utf8.DecodeLastRuneInString(s[:len(s)-n]); r2 == ' ' && n2 > 0 {
			return n + n2
		}
	}
	return n
}
