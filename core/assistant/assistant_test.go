package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/aida/core/llms"
	"github.com/koscakluka/aida/core/memory"
	"github.com/koscakluka/aida/core/session"
)

type fakeLLM struct {
	prompts []string
	options []llms.PromptOptions
	reply   string
	err     error
	// calls lists the tools to run before replying, with their arguments
	calls map[string]string
	// results holds the output of the tools called
	results map[string]string
}

func (l *fakeLLM) Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error) {
	options := llms.NewPromptOptions(opts...)
	l.prompts = append(l.prompts, prompt)
	l.options = append(l.options, options)
	if l.err != nil {
		return nil, l.err
	}

	l.results = map[string]string{}
	for name, args := range l.calls {
		tool, ok := options.FindTool(name)
		if !ok {
			return nil, fmt.Errorf("tool %s not offered", name)
		}
		result, err := tool.Execute(ctx, args)
		if err != nil {
			return nil, err
		}
		l.results[name] = result
	}
	return &llms.Response{Content: l.reply}, nil
}

type fakeSearcher struct{ queries []string }

func (s *fakeSearcher) Search(_ context.Context, query string) string {
	s.queries = append(s.queries, query)
	return "Sunny, 24°C"
}

func toolNames(options llms.PromptOptions) []string {
	names := []string{}
	for _, tool := range options.Tools {
		names = append(names, tool.Function.Name)
	}
	return names
}

func TestHandleUsesConversationContext(t *testing.T) {
	llm := &fakeLLM{reply: "It's sunny"}
	a := NewAssistant(llm)
	ctx := context.Background()

	reply, err := a.Handle(ctx, "What's the weather", "session")
	if err != nil || reply != "It's sunny" {
		t.Fatalf("unexpected reply %q (err=%v)", reply, err)
	}
	if llm.prompts[0] != "What's the weather" {
		t.Fatalf("expected the bare utterance without history, got %q", llm.prompts[0])
	}
	if llm.options[0].Instructions != DefaultSystemPrompt {
		t.Fatalf("expected the system prompt to be sent")
	}
	if len(llm.options[0].Tools) != 0 {
		t.Fatalf("expected no tools without search or memory, got %v", toolNames(llm.options[0]))
	}

	if err := a.Record(ctx, session.Exchange{Utterance: "What's the weather", Reply: "It's sunny"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Handle(ctx, "And tomorrow?", "session"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Recent conversation context:\nUser: What's the weather\nAssistant: It's sunny\n\nCurrent input: And tomorrow?"
	if llm.prompts[1] != want {
		t.Fatalf("unexpected contextualized prompt:\n%s", llm.prompts[1])
	}
}

func TestHandleFailures(t *testing.T) {
	llmErr := errors.New("rate limited")
	if _, err := NewAssistant(&fakeLLM{err: llmErr}).Handle(context.Background(), "hi", "s"); !errors.Is(err, llmErr) {
		t.Fatalf("expected llm error, got %v", err)
	}
	if _, err := NewAssistant(&fakeLLM{}).Handle(context.Background(), "hi", "s"); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected empty reply error, got %v", err)
	}
}

func TestWebSearchTool(t *testing.T) {
	search := &fakeSearcher{}
	llm := &fakeLLM{reply: "It's sunny", calls: map[string]string{"web_search": `{"query":"weather Zagreb"}`}}
	a := NewAssistant(llm, WithWebSearch(search))

	if _, err := a.Handle(context.Background(), "What's the weather in Zagreb", "s"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(search.queries) != 1 || search.queries[0] != "weather Zagreb" {
		t.Fatalf("unexpected search queries %v", search.queries)
	}
	if llm.results["web_search"] != "Sunny, 24°C" {
		t.Fatalf("unexpected tool result %q", llm.results["web_search"])
	}
}

func TestRecordStoresMemoriesAndSearchMemoryTool(t *testing.T) {
	store := memory.NewInMemoryStore()
	llm := &fakeLLM{reply: "Your sister lives in Split.", calls: map[string]string{"search_memory": `{"query":"sister"}`}}
	a := NewAssistant(llm, WithMemory(store), WithUserID("ana"))
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if err := a.Record(ctx, session.Exchange{SessionID: "s1", Utterance: "My sister lives in Split", Reply: "Good to know.", At: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := store.Search(ctx, "ana", "", 10)
	if len(stored) != 1 || stored[0].SessionID != "s1" || !stored[0].CreatedAt.Equal(at) {
		t.Fatalf("unexpected stored memories %+v", stored)
	}

	if _, err := a.Handle(ctx, "Where does my sister live?", "s2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "[2024-05-01 09:30]\nUser: My sister lives in Split\nAssistant: Good to know."
	if llm.results["search_memory"] != want {
		t.Fatalf("unexpected memory tool result:\n%s", llm.results["search_memory"])
	}

	if err := a.ClearMemories(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left, _ := store.Search(ctx, "ana", "", 10); len(left) != 0 {
		t.Fatalf("expected memories to be cleared")
	}
}

func TestConversationCacheKeepsLatest(t *testing.T) {
	cache := NewConversationCache(DefaultCacheSize)
	for i := range 15 {
		cache.Add("ana", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if got := cache.Len("ana"); got != DefaultCacheSize {
		t.Fatalf("expected %d cached interactions, got %d", DefaultCacheSize, got)
	}
	recent := cache.Recent("ana", 0)
	if strings.Contains(recent, "User: q4\n") || !strings.HasPrefix(recent, "User: q5\n") {
		t.Fatalf("expected the oldest interactions to be evicted, got:\n%s", recent)
	}
	if got := cache.Recent("ana", 1); got != "User: q14\nAssistant: a14" {
		t.Fatalf("unexpected limited context %q", got)
	}
	if cache.Contextualize("ivo", "hi") != "hi" {
		t.Fatalf("expected users not to share context")
	}
}
