package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const DefaultCacheSize = 10

type interaction struct {
	at        time.Time
	utterance string
	reply     string
}

// ConversationCache keeps the most recent interactions of every user so that
// follow-up questions can be answered in context.
type ConversationCache struct {
	mu           sync.Mutex
	size         int
	interactions map[string][]interaction
}

func NewConversationCache(size int) *ConversationCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &ConversationCache{size: size, interactions: map[string][]interaction{}}
}

func (c *ConversationCache) Add(userID, utterance, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := append(c.interactions[userID], interaction{
		at:        time.Now(),
		utterance: utterance,
		reply:     reply,
	})
	if len(history) > c.size {
		history = history[len(history)-c.size:]
	}
	c.interactions[userID] = history
}

// Recent renders up to limit of the latest interactions, oldest first. A
// non-positive limit renders everything cached.
func (c *ConversationCache) Recent(userID string, limit int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.interactions[userID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	parts := make([]string, 0, len(history))
	for _, i := range history {
		parts = append(parts, fmt.Sprintf("User: %s\nAssistant: %s", i.utterance, i.reply))
	}
	return strings.Join(parts, "\n\n")
}

// Contextualize prefixes input with the recent conversation, if there is any.
func (c *ConversationCache) Contextualize(userID, input string) string {
	recent := c.Recent(userID, 0)
	if recent == "" {
		return input
	}
	return fmt.Sprintf("Recent conversation context:\n%s\n\nCurrent input: %s", recent, input)
}

func (c *ConversationCache) Len(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.interactions[userID])
}

func (c *ConversationCache) Clear(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.interactions, userID)
}
