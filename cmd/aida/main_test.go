package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/llms/groq"
	"github.com/koscakluka/aida/core/session"
	"github.com/koscakluka/aida/internal/config"
)

type echoAssistant struct {
	recorded []session.Exchange
	failOn   string
}

func (a *echoAssistant) Handle(_ context.Context, utterance, _ string) (string, error) {
	if utterance == a.failOn {
		return "", errors.New("llm unavailable")
	}
	return "You said " + utterance, nil
}

func (a *echoAssistant) Record(_ context.Context, exchange session.Exchange) error {
	a.recorded = append(a.recorded, exchange)
	return nil
}

func TestChat(t *testing.T) {
	aida := &echoAssistant{failOn: "break"}
	var out bytes.Buffer

	err := chat(context.Background(), aida, strings.NewReader("hello\n\nbreak\nexit\nignored\n"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Aida: You said hello", "Sorry, something went wrong", "Aida: Goodbye!"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "ignored") {
		t.Fatalf("expected input after exit to be ignored")
	}
	if len(aida.recorded) != 1 || aida.recorded[0].Reply != "You said hello" || aida.recorded[0].SessionID == "" {
		t.Fatalf("unexpected recorded exchanges %+v", aida.recorded)
	}
}

func TestModelFollowsSession(t *testing.T) {
	var m tea.Model = newModel("ana")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})

	for _, status := range []session.Status{
		{State: session.StateSpeaking, SessionID: "0123456789", Reply: "Listening now"},
		{State: session.StateListening, Interim: "What's the"},
		{State: session.StateThinking, Utterance: "What's the weather"},
		{State: session.StateSpeaking, Reply: "It's sunny"},
	} {
		m, _ = m.Update(statusMsg(status))
	}

	view := m.View()
	for _, want := range []string{"session 01234567", "What's the weather", "It's sunny", "Speaking"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if got := m.(model); got.interim != "" || len(got.lines) != 3 {
		t.Fatalf("unexpected model state %+v", got)
	}

	_, cmd := m.Update(runDoneMsg{err: errors.New("device lost")})
	if cmd == nil {
		t.Fatalf("expected the TUI to quit once the session ends")
	}
}

func TestNewLLMSelectsProvider(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("OPENAI_API_KEY", "")

	llm, err := newLLM(config.LLMConfig{Provider: config.LLMProviderGroq})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.Model() != groq.DefaultModel {
		t.Fatalf("expected the groq default model, got %q", llm.Model())
	}

	if _, err := newLLM(config.LLMConfig{Provider: config.LLMProviderOpenAI}); !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected a missing key to fail initialization, got %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "openai-key")
	llm, err = newLLM(config.LLMConfig{Provider: config.LLMProviderOpenAI})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if llm.Model() != openAIModel {
		t.Fatalf("expected the openai default model, got %q", llm.Model())
	}

	llm, err = newLLM(config.LLMConfig{Provider: config.LLMProviderOpenAI, Model: "gpt-4.1"})
	if err != nil || llm.Model() != "gpt-4.1" {
		t.Fatalf("expected the configured model to win, got %v (err=%v)", llm, err)
	}
}
