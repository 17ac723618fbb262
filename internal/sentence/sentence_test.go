package sentence

import (
	"slices"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple",
			input:    "Hello world. This is a test.",
			expected: []string{"Hello world.", "This is a test."},
		},
		{
			name:     "exclamation and question",
			input:    "Stop! Who goes there? A friend.",
			expected: []string{"Stop!", "Who goes there?", "A friend."},
		},
		{
			name:     "decimal is not a boundary",
			input:    "It cost 3.50 dollars. Cheap.",
			expected: []string{"It cost 3.50 dollars.", "Cheap."},
		},
		{
			name:     "mark glued to next word",
			input:    "See e.g.this one. Done.",
			expected: []string{"See e.g.this one.", "Done."},
		},
		{
			name:     "closing quote blocks boundary",
			input:    `He said "Stop." Then he left.`,
			expected: []string{`He said "Stop." Then he left.`},
		},
		{
			name:     "bullet starts a sentence",
			input:    "First point. • second point.",
			expected: []string{"First point.", "• second point."},
		},
		{
			name:     "newline counts as whitespace",
			input:    "End of line.\nNext line.",
			expected: []string{"End of line.", "Next line."},
		},
		{
			name:     "ellipsis",
			input:    "Wait... What happened?",
			expected: []string{"Wait...", "What happened?"},
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "   Padded.   Again.  ",
			expected: []string{"Padded.", "Again."},
		},
		{
			name:     "no terminal mark",
			input:    "a fragment without end",
			expected: []string{"a fragment without end"},
		},
		{
			name:     "empty",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "non-ascii letters",
			input:    "Ça va. Élan vital.",
			expected: []string{"Ça va.", "Élan vital."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.input)
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Split(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSplitIdempotent(t *testing.T) {
	inputs := []string{
		"Hello world. This is a test.",
		"It cost 3.50 dollars.  Cheap!   Really? yes.",
		"Line one.\n\nLine two has e.g. an abbreviation. And more",
		`Quote "inside." Then. • bullet. _under. 42 is a number.`,
		"",
		"no marks at all",
	}
	for _, in := range inputs {
		first := Split(in)
		again := Split(Join(first))
		if !slices.Equal(first, again) {
			t.Errorf("Split not idempotent for %q: %q vs %q", in, first, again)
		}
	}
}

func TestAllRestartable(t *testing.T) {
	seq := All("One. Two. Three.")
	a := slices.Collect(seq)
	b := slices.Collect(seq)
	if !slices.Equal(a, b) || len(a) != 3 {
		t.Errorf("second iteration differs: %q vs %q", a, b)
	}

	var first string
	for s := range seq {
		first = s
		break
	}
	if first != "One." {
		t.Errorf("early break got %q", first)
	}
}

func TestParse(t *testing.T) {
	text := "Chapter One\n\n  First sentence. Second sentence.\n\nThird in new paragraph.\n"
	doc := Parse(text)

	if doc.Paragraphs() != 3 {
		t.Fatalf("Paragraphs() = %d, want 3", doc.Paragraphs())
	}
	if doc.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", doc.Len())
	}

	p1 := doc.Paragraph(1)
	if len(p1) != 2 || p1[0].Text != "First sentence." || p1[1].Text != "Second sentence." {
		t.Errorf("Paragraph(1) = %+v", p1)
	}
	for _, s := range p1 {
		if text[s.Offset:s.Offset+len(s.Text)] != s.Text {
			t.Errorf("offset %d does not point at %q", s.Offset, s.Text)
		}
		if s.Para != 1 {
			t.Errorf("Para = %d, want 1", s.Para)
		}
	}

	if got := doc.ParagraphStart(2); got != 3 {
		t.Errorf("ParagraphStart(2) = %d, want 3", got)
	}
	if _, ok := doc.At(4); ok {
		t.Error("At(4) should be out of range")
	}
	if doc.Paragraph(7) != nil {
		t.Error("Paragraph(7) should be nil")
	}
}

func TestDocumentText(t *testing.T) {
	doc := Parse("A one. A two.\nB one. B two.")

	tests := []struct {
		lo, hi   int
		expected string
	}{
		{0, 2, "A one. A two."},
		{1, 3, "A two.\n\nB one."},
		{0, 4, "A one. A two.\n\nB one. B two."},
		{2, 2, ""},
		{-3, 1, "A one."},
		{3, 10, "B two."},
	}
	for _, tt := range tests {
		if got := doc.Text(tt.lo, tt.hi); got != tt.expected {
			t.Errorf("Text(%d, %d) = %q, want %q", tt.lo, tt.hi, got, tt.expected)
		}
	}
}

func BenchmarkSplit(b *testing.B) {
	text := ""
	for i := 0; i < 100; i++ {
		text += "Hello world this is a test sentence with multiple words. "
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Split(text)
	}
}
