package kobo

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

type bookTitles []Book

func (b bookTitles) String(i int) string { return b[i].Title + " " + b[i].Author }
func (b bookTitles) Len() int            { return len(b) }

// FindBook returns the book whose title best matches query. An exact title
// match, ignoring case, always wins.
func FindBook(books []Book, query string) (Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Book{}, fmt.Errorf("book %q: %w", query, ErrNotFound)
	}
	for _, b := range books {
		if strings.EqualFold(b.Title, query) {
			return b, nil
		}
	}
	matches := fuzzy.FindFrom(query, bookTitles(books))
	if len(matches) == 0 {
		return Book{}, fmt.Errorf("book %q: %w", query, ErrNotFound)
	}
	return books[matches[0].Index], nil
}
