package quote

import (
	"errors"
	"fmt"
)

var (
	// ErrAnchorNotFound is returned when a highlight anchor does not occur in
	// the section text, usually a different edition or an encoding mismatch.
	ErrAnchorNotFound = errors.New("highlight anchor not found in section")

	// ErrOrderingViolation is returned when the end anchor resolves to a
	// paragraph before the start anchor. It indicates a tokenizer/locator
	// mismatch rather than bad input.
	ErrOrderingViolation = errors.New("end anchor precedes start anchor")

	// ErrContextExhausted is returned by an extend operation when the section
	// has no more text on that side. The cursor is left unchanged.
	ErrContextExhausted = errors.New("no more context in section")

	// ErrContextRefillFailed is returned by a Context when no sentence exists
	// next to the requested position.
	ErrContextRefillFailed = errors.New("no adjacent sentence to refill context")

	// ErrEmptyQuote is returned by a contract operation that would leave
	// nothing selected. The cursor is left unchanged.
	ErrEmptyQuote = errors.New("quote cannot be empty")
)

// AnchorError reports which anchor of a highlight could not be located.
type AnchorError struct {
	Which  string // "start" or "end"
	Anchor string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("%s anchor %q not found in section", e.Which, e.Anchor)
}

func (e *AnchorError) Unwrap() error { return ErrAnchorNotFound }
