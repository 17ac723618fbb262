// Package state persists what marg remembers between runs: which highlights
// were exported and per-book metadata corrections.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const stateFileName = "marg.json"

// BookMetadata overrides the title and author of a book file.
type BookMetadata struct {
	File   string `json:"file"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type stateData struct {
	Exported map[string]time.Time   `json:"exported"`
	Books    map[string]BookMetadata `json:"books"`
}

// StateStore manages persistent state
type StateStore struct {
	path string
	data stateData
	mu   sync.RWMutex
}

// NewStateStore creates or loads state from dir, or from DefaultDir when dir
// is empty.
func NewStateStore(dir string) (*StateStore, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	store := &StateStore{
		path: filepath.Join(dir, stateFileName),
		data: emptyState(),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with empty state
		store.data = emptyState()
	}
	return store, nil
}

func emptyState() stateData {
	return stateData{
		Exported: make(map[string]time.Time),
		Books:    make(map[string]BookMetadata),
	}
}

// DefaultDir returns XDG_STATE_HOME/marg or ~/.local/state/marg
func DefaultDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "marg")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "marg")
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Exported reports whether the highlight was exported.
func (s *StateStore) Exported(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data.Exported[id]
	return ok
}

// MarkExported records that the highlight was exported at t.
func (s *StateStore) MarkExported(id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Exported[id] = t
	return s.save()
}

// ClearExported forgets an exported highlight.
func (s *StateStore) ClearExported(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Exported, id)
	return s.save()
}

// SetMetadata stores a title and author for a book file, replacing any
// previous entry for the same cleaned file name.
func (s *StateStore) SetMetadata(file, title, author string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Books[CleanFileName(file)] = BookMetadata{
		File:   file,
		Title:  strings.TrimSpace(title),
		Author: strings.TrimSpace(author),
	}
	return s.save()
}

// Metadata returns the stored metadata for a book file.
func (s *StateStore) Metadata(file string) (BookMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data.Books[CleanFileName(file)]
	return m, ok
}

// ResolveMetadata returns the stored metadata for file, or a guess parsed from
// the file name.
func (s *StateStore) ResolveMetadata(file string) BookMetadata {
	if m, ok := s.Metadata(file); ok {
		return m
	}
	title, author := ParseFileName(file)
	return BookMetadata{File: file, Title: title, Author: author}
}

var nonWord = regexp.MustCompile(`[^\w\s-]`)

// CleanFileName normalizes a book file name for comparison.
func CleanFileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(name, ".epub")))
	return nonWord.ReplaceAllString(name, "")
}

// ParseFileName guesses title and author from names like
// "Author, Name - Title.epub" or "Title - Author Name.epub". The part before
// the dash is taken as the author when it contains a comma or has at most
// three words.
func ParseFileName(name string) (title, author string) {
	name = strings.TrimSuffix(filepath.Base(name), ".epub")
	before, after, ok := strings.Cut(name, " - ")
	if !ok {
		return name, ""
	}
	if strings.Contains(before, ",") || len(strings.Fields(before)) <= 3 {
		return after, before
	}
	return before, after
}

func (s *StateStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.data); err != nil {
		return err
	}
	if s.data.Exported == nil {
		s.data.Exported = make(map[string]time.Time)
	}
	if s.data.Books == nil {
		s.data.Books = make(map[string]BookMetadata)
	}
	return nil
}

func (s *StateStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
