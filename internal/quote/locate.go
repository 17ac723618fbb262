// Package quote locates e-reader highlights inside section text and provides
// a cursor for widening or narrowing the located quote.
package quote

import (
	"fmt"
	"slices"
	"strings"

	"github.com/metcalfc/marg/internal/sentence"
)

// Span is a located quote: the half-open flat sentence range [Start, End) of a
// document.
type Span struct {
	Start, End int
	Sentences  []sentence.Sentence
}

// Breaks returns the number of paragraph breaks inside the span.
func (s Span) Breaks() int {
	n := 0
	for i := 1; i < len(s.Sentences); i++ {
		if s.Sentences[i].Para != s.Sentences[i-1].Para {
			n++
		}
	}
	return n
}

// Text renders the span, keeping paragraph separation.
func (s Span) Text() string {
	return sentence.JoinSentences(s.Sentences)
}

// Locate returns the smallest sentence-aligned span of doc that encloses the
// raw highlight text.
//
// The first sentence of the highlight is the start anchor and the last one the
// end anchor. A trailing single-word piece is an export artifact and is skipped
// in favour of the piece before it. Anchors match by substring containment, so
// partial first and last sentences resolve to the whole sentence; the first
// matching paragraph and sentence win.
//
// The span is contiguous: paragraphs lying between the anchors are included
// whole, so it may cross more than one paragraph break.
func Locate(raw string, doc *sentence.Document) (Span, error) {
	start, end := anchors(raw)
	if start == "" {
		return Span{}, &AnchorError{Which: "start", Anchor: raw}
	}

	pStart, ok := findParagraph(doc, start)
	if !ok {
		return Span{}, &AnchorError{Which: "start", Anchor: start}
	}
	pEnd, ok := findParagraph(doc, end)
	if !ok {
		return Span{}, &AnchorError{Which: "end", Anchor: end}
	}
	if pEnd < pStart {
		return Span{}, fmt.Errorf("%w: start in paragraph %d, end in paragraph %d",
			ErrOrderingViolation, pStart, pEnd)
	}

	i := findSentence(doc.Paragraph(pStart), start)
	j := findSentence(doc.Paragraph(pEnd), end)
	lo := doc.ParagraphStart(pStart) + i
	hi := doc.ParagraphStart(pEnd) + j + 1
	if hi <= lo {
		hi = lo + 1
	}

	return Span{
		Start:     lo,
		End:       hi,
		Sentences: slices.Clone(doc.Slice(lo, hi)),
	}, nil
}

func anchors(raw string) (start, end string) {
	pieces := sentence.Split(raw)
	if len(pieces) == 0 {
		return "", ""
	}
	start = pieces[0]
	end = pieces[len(pieces)-1]
	if len(pieces) > 1 && len(strings.Fields(end)) == 1 {
		end = pieces[len(pieces)-2]
	}
	return collapse(start), collapse(end)
}

func findParagraph(doc *sentence.Document, anchor string) (int, bool) {
	for p := 0; p < doc.Paragraphs(); p++ {
		if findSentence(doc.Paragraph(p), anchor) >= 0 {
			return p, true
		}
	}
	return 0, false
}

func findSentence(sentences []sentence.Sentence, anchor string) int {
	for i, s := range sentences {
		if strings.Contains(collapse(s.Text), anchor) {
			return i
		}
	}
	return -1
}

// collapse replaces every whitespace run with a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
