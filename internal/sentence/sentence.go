// Package sentence splits text into sentences using a terminal punctuation heuristic.
//
// A boundary falls after '.', '!' or '?' when the mark is followed by at least one
// whitespace rune and then a word rune or a bullet glyph. Marks glued to the next
// word ("e.g.x", "3.14") or followed by a closing quote are not boundaries.
package sentence

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const bullet = '•'

// span is a trimmed byte range of a sentence inside the tokenized text.
type span struct {
	start, end int
}

// All returns the sentences of text in order. The sequence is lazy and can be
// ranged over any number of times with identical results.
func All(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for sp := range spans(text) {
			if !yield(text[sp.start:sp.end]) {
				return
			}
		}
	}
}

// Split returns all sentences of text.
func Split(text string) []string {
	return slices.Collect(All(text))
}

// Join rejoins sentences with single spaces.
func Join(sentences []string) string {
	return strings.Join(sentences, " ")
}

func spans(text string) iter.Seq[span] {
	return func(yield func(span) bool) {
		start := 0
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			i += size
			if !isTerminal(r) {
				continue
			}
			next, ok := boundaryAfter(text, i)
			if !ok {
				continue
			}
			if sp, ok := trimmed(text, start, i); ok {
				if !yield(sp) {
					return
				}
			}
			start, i = next, next
		}
		if sp, ok := trimmed(text, start, len(text)); ok {
			yield(sp)
		}
	}
}

// boundaryAfter reports whether a sentence boundary follows the terminal mark
// ending at i, and where the next sentence starts.
func boundaryAfter(text string, i int) (int, bool) {
	j := i
	for j < len(text) {
		r, size := utf8.DecodeRuneInString(text[j:])
		if !unicode.IsSpace(r) {
			break
		}
		j += size
	}
	if j == i || j == len(text) {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(text[j:])
	if !isWordStart(r) {
		return 0, false
	}
	return j, true
}

func trimmed(text string, start, end int) (span, bool) {
	s := text[start:end]
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	s = strings.TrimSpace(s)
	if s == "" {
		return span{}, false
	}
	return span{start: start + lead, end: start + lead + len(s)}, true
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isWordStart(r rune) bool {
	return r == '_' || r == bullet || unicode.IsLetter(r) || unicode.IsDigit(r)
}
