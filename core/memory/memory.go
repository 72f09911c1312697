// Package memory keeps the long-term record of what the user and the
// assistant said to each other.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	KindConversation = "conversation"

	DefaultSearchLimit = 5

	noMemoriesMessage = "No relevant memories found."
)

var ErrEmptyEntry = errors.New("memory entry has no text")

type Entry struct {
	ID        string
	UserID    string
	SessionID string
	Kind      string
	Text      string
	Tags      []string
	CreatedAt time.Time
}

// NewConversationEntry records a single exchange between the user and the
// assistant.
func NewConversationEntry(userID, sessionID, utterance, reply string, at time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		UserID:    userID,
		SessionID: sessionID,
		Kind:      KindConversation,
		Text:      fmt.Sprintf("User: %s\nAssistant: %s", strings.TrimSpace(utterance), strings.TrimSpace(reply)),
		CreatedAt: at,
	}
}

// Store persists entries per user.
type Store interface {
	Add(ctx context.Context, entry Entry) error
	// Search returns up to limit entries relevant to query, most relevant
	// first. A blank query returns the most recent entries.
	Search(ctx context.Context, userID, query string, limit int) ([]Entry, error)
	// Prune removes entries created before olderThan and reports how many
	// were removed.
	Prune(ctx context.Context, userID string, olderThan time.Time) (int, error)
	Clear(ctx context.Context, userID string) error
}

// Normalize fills in the defaults of an entry about to be stored.
func Normalize(entry Entry) (Entry, error) {
	entry.Text = strings.TrimSpace(entry.Text)
	if entry.Text == "" {
		return entry, ErrEmptyEntry
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Kind == "" {
		entry.Kind = KindConversation
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return entry, nil
}

// Format renders entries as context for the LLM.
func Format(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		timestamp := entry.CreatedAt.Format("2006-01-02 15:04")
		if strings.HasPrefix(text, "User:") || strings.HasPrefix(text, "Assistant:") {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", timestamp, text))
		} else {
			parts = append(parts, fmt.Sprintf("[%s] %s", timestamp, text))
		}
	}
	if len(parts) == 0 {
		return noMemoriesMessage
	}
	return strings.Join(parts, "\n\n")
}
