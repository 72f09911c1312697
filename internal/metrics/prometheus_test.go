package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/aida/core/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSessionStatus(t *testing.T) {
	m := New()

	m.Observe(session.Status{State: session.StateSpeaking, Reply: "Listening now"})
	m.Observe(session.Status{State: session.StateListening})
	m.Observe(session.Status{State: session.StateThinking, Utterance: "What's the weather"})
	m.Observe(session.Status{State: session.StateSpeaking, Reply: "It's sunny"})
	m.Observe(session.Status{State: session.StateError, Err: errors.New("device lost")})

	if got := testutil.ToFloat64(m.Utterances); got != 1 {
		t.Fatalf("expected one utterance, got %v", got)
	}
	if got := testutil.ToFloat64(m.Replies); got != 2 {
		t.Fatalf("expected two replies, got %v", got)
	}
	if got := testutil.ToFloat64(m.Errors); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("speaking")); got != 2 {
		t.Fatalf("expected two speaking transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.CurrentState.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected error to be the current state")
	}
	if got := testutil.ToFloat64(m.CurrentState.WithLabelValues("speaking")); got != 0 {
		t.Fatalf("expected speaking not to be the current state")
	}
	if got := testutil.CollectAndCount(m.ResponseDelay); got != 1 {
		t.Fatalf("expected the response delay histogram to be collected, got %d", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.Observe(session.Status{State: session.StateListening})

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(recorder.Result().Body)
	for _, want := range []string{"aida_session_transitions_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s in the exposition", want)
		}
	}
}

func TestMeterProviderExportsThroughRegistry(t *testing.T) {
	m := New()
	provider, err := m.MeterProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer provider.Shutdown(context.Background())

	counter, err := provider.Meter("github.com/koscakluka/aida/core/capture").Int64Counter("aida.capture.frames")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counter.Add(context.Background(), 3)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(recorder.Body)
	if !strings.Contains(string(body), "aida_capture_frames") {
		t.Fatalf("expected the otel counter to be exported, got:\n%s", body)
	}
}
