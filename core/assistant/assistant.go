// Package assistant answers the user's utterances with an LLM that can look
// things up on the web and in its long-term memory.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/aida/core/llms"
	"github.com/koscakluka/aida/core/memory"
	"github.com/koscakluka/aida/core/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultUserID = "default_user"

var ErrEmptyReply = errors.New("llm returned an empty reply")

// LLM answers a prompt, calling the given tools as needed.
type LLM interface {
	Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error)
}

// Searcher answers questions that need current information.
type Searcher interface {
	Search(ctx context.Context, query string) string
}

var (
	_ session.Handler  = (*Assistant)(nil)
	_ session.Recorder = (*Assistant)(nil)
)

type Assistant struct {
	llm          LLM
	search       Searcher
	memory       memory.Store
	cache        *ConversationCache
	userID       string
	systemPrompt string
	memoryLimit  int
}

type AssistantOption func(*Assistant)

func WithWebSearch(search Searcher) AssistantOption {
	return func(a *Assistant) { a.search = search }
}

// WithMemory stores every recorded exchange and lets the LLM search them.
func WithMemory(store memory.Store) AssistantOption {
	return func(a *Assistant) { a.memory = store }
}

func WithUserID(userID string) AssistantOption {
	return func(a *Assistant) { a.userID = userID }
}

func WithSystemPrompt(prompt string) AssistantOption {
	return func(a *Assistant) { a.systemPrompt = prompt }
}

func WithCacheSize(size int) AssistantOption {
	return func(a *Assistant) { a.cache = NewConversationCache(size) }
}

func NewAssistant(llm LLM, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		llm:          llm,
		cache:        NewConversationCache(DefaultCacheSize),
		userID:       DefaultUserID,
		systemPrompt: DefaultSystemPrompt,
		memoryLimit:  memory.DefaultSearchLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handle answers a finished utterance.
func (a *Assistant) Handle(ctx context.Context, utterance, sessionID string) (string, error) {
	ctx, span := tracer.Start(ctx, "handle utterance")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	prompt := a.cache.Contextualize(a.userID, utterance)
	response, err := a.llm.Prompt(ctx, prompt,
		llms.WithInstructions(a.systemPrompt),
		llms.WithTools(a.tools()...),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to prompt llm")
		return "", fmt.Errorf("failed to prompt llm: %w", err)
	}
	if response.Content == "" {
		span.SetStatus(codes.Error, "empty reply")
		return "", ErrEmptyReply
	}

	span.SetAttributes(attribute.Int("response.tool_calls", len(response.ToolCalls)))
	for _, call := range response.ToolCalls {
		logger.Debug("tool called", "tool", call.Name, "arguments", call.Arguments)
	}
	return response.Content, nil
}

// Record keeps the exchange in the conversation cache and long-term memory.
func (a *Assistant) Record(ctx context.Context, exchange session.Exchange) error {
	a.cache.Add(a.userID, exchange.Utterance, exchange.Reply)
	if a.memory == nil {
		return nil
	}

	entry := memory.NewConversationEntry(a.userID, exchange.SessionID, exchange.Utterance, exchange.Reply, exchange.At)
	if err := a.memory.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to store exchange: %w", err)
	}
	return nil
}

// PruneMemories removes memories older than age.
func (a *Assistant) PruneMemories(ctx context.Context, age time.Duration) (int, error) {
	if a.memory == nil {
		return 0, nil
	}
	return a.memory.Prune(ctx, a.userID, time.Now().Add(-age))
}

// ClearMemories forgets everything about the user.
func (a *Assistant) ClearMemories(ctx context.Context) error {
	a.cache.Clear(a.userID)
	if a.memory == nil {
		return nil
	}
	return a.memory.Clear(ctx, a.userID)
}
