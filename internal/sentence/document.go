package sentence

import "strings"

// Sentence is a tokenized piece of a section's text.
type Sentence struct {
	Text   string
	Para   int // index of the paragraph the sentence belongs to
	Offset int // byte offset of Text in the source text
}

// Document is the tokenized form of one book section. Paragraphs are the
// non-blank lines of the source, numbered consecutively.
type Document struct {
	source string
	flat   []Sentence
	starts []int // flat index of each paragraph's first sentence
}

// Parse splits text into paragraphs and tokenizes each one independently.
func Parse(text string) *Document {
	d := &Document{source: text}
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		first := len(d.flat)
		para := len(d.starts)
		for sp := range spans(line) {
			d.flat = append(d.flat, Sentence{
				Text:   line[sp.start:sp.end],
				Para:   para,
				Offset: offset + sp.start,
			})
		}
		if len(d.flat) > first {
			d.starts = append(d.starts, first)
		}
		offset += len(line)
	}
	return d
}

// Source returns the text the document was parsed from.
func (d *Document) Source() string { return d.source }

// Len returns the number of sentences in the document.
func (d *Document) Len() int { return len(d.flat) }

// Paragraphs returns the number of paragraphs.
func (d *Document) Paragraphs() int { return len(d.starts) }

// At returns the sentence at flat index i.
func (d *Document) At(i int) (Sentence, bool) {
	if i < 0 || i >= len(d.flat) {
		return Sentence{}, false
	}
	return d.flat[i], true
}

// ParagraphStart returns the flat index of the first sentence of paragraph p.
func (d *Document) ParagraphStart(p int) int {
	return d.starts[p]
}

// Paragraph returns the sentences of paragraph p.
func (d *Document) Paragraph(p int) []Sentence {
	if p < 0 || p >= len(d.starts) {
		return nil
	}
	end := len(d.flat)
	if p+1 < len(d.starts) {
		end = d.starts[p+1]
	}
	return d.flat[d.starts[p]:end]
}

// Slice returns the sentences in the flat range [lo, hi).
func (d *Document) Slice(lo, hi int) []Sentence {
	lo = max(lo, 0)
	hi = min(hi, len(d.flat))
	if lo >= hi {
		return nil
	}
	return d.flat[lo:hi]
}

// Text renders the flat range [lo, hi) the way JoinSentences does.
func (d *Document) Text(lo, hi int) string {
	return JoinSentences(d.Slice(lo, hi))
}

// ParagraphBreak separates sentences of different paragraphs when rendered.
const ParagraphBreak = "\n\n"

// JoinSentences joins sentences with a single space inside a paragraph and a
// ParagraphBreak between paragraphs.
func JoinSentences(sentences []Sentence) string {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteString(Separator(sentences[i-1], s))
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Separator returns the text placed between two adjacent sentences.
func Separator(prev, next Sentence) string {
	if prev.Para != next.Para {
		return ParagraphBreak
	}
	return " "
}
