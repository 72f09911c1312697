package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
)

// InMemoryStore is a Store that lives for the lifetime of the process.
// Search ranks entries by how many query words they contain.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: map[string][]Entry{}}
}

func (s *InMemoryStore) Add(_ context.Context, entry Entry) error {
	entry, err := Normalize(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return nil
}

func (s *InMemoryStore) Search(_ context.Context, userID, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	s.mu.RLock()
	entries := slices.Clone(s.entries[userID])
	s.mu.RUnlock()

	terms := words(query)
	type scored struct {
		entry Entry
		score int
	}
	matches := make([]scored, 0, len(entries))
	for _, entry := range entries {
		score := 0
		if len(terms) > 0 {
			text := words(entry.Text)
			for _, term := range terms {
				if slices.Contains(text, term) {
					score++
				}
			}
			if score == 0 {
				continue
			}
		}
		matches = append(matches, scored{entry: entry, score: score})
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		if a.score != b.score {
			return b.score - a.score
		}
		return b.entry.CreatedAt.Compare(a.entry.CreatedAt)
	})

	result := make([]Entry, 0, min(limit, len(matches)))
	for _, match := range matches[:min(limit, len(matches))] {
		result = append(result, match.entry)
	}
	return result, nil
}

func (s *InMemoryStore) Prune(_ context.Context, userID string, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries[userID])
	s.entries[userID] = slices.DeleteFunc(s.entries[userID], func(e Entry) bool {
		return e.CreatedAt.Before(olderThan)
	})
	return before - len(s.entries[userID]), nil
}

func (s *InMemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
