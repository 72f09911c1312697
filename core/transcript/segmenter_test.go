package transcript

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/aida/core/speechtotext"
)

func transcriptResult(text string, isFinal bool) speechtotext.Result {
	return speechtotext.Result{Kind: speechtotext.ResultTranscript, Transcript: text, IsFinal: isFinal}
}

func receive(t *testing.T, s *Segmenter) Utterance {
	t.Helper()

	select {
	case u := <-s.Utterances():
		return u
	case <-time.After(time.Second):
		t.Fatalf("expected an utterance")
	}
	return Utterance{}
}

func expectNoUtterance(t *testing.T, s *Segmenter) {
	t.Helper()

	select {
	case u := <-s.Utterances():
		t.Fatalf("expected no utterance, got %+v", u)
	default:
	}
}

func TestSegmenterJoinsFinalFragmentsInOrder(t *testing.T) {
	tests := []struct {
		name    string
		results []speechtotext.Result
		want    string
	}{
		{
			name:    "single final",
			results: []speechtotext.Result{transcriptResult("hello", true)},
			want:    "hello",
		},
		{
			name: "interims before final",
			results: []speechtotext.Result{
				transcriptResult("What's", false),
				transcriptResult("What's the", false),
				transcriptResult("What's the weather", true),
			},
			want: "What's the weather",
		},
		{
			name: "several finals",
			results: []speechtotext.Result{
				transcriptResult("turn on", true),
				transcriptResult("the", false),
				transcriptResult("the lights", true),
				transcriptResult("  please ", true),
			},
			want: "turn on the lights please",
		},
		{
			name: "empty finals are skipped",
			results: []speechtotext.Result{
				transcriptResult("", true),
				transcriptResult("hi", true),
			},
			want: "hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSegmenter()
			for _, r := range tt.results {
				s.Add(r)
			}
			if !s.End(EndSilence) {
				t.Fatalf("expected End to end the turn")
			}

			u := receive(t, s)
			if u.Text != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, u.Text)
			}
			if u.Reason != EndSilence {
				t.Fatalf("expected silence reason, got %q", u.Reason)
			}
			expectNoUtterance(t, s)
		})
	}
}

func TestSegmenterEmitsExactlyOncePerTurn(t *testing.T) {
	s := NewSegmenter()
	s.Add(transcriptResult("hello", true))
	s.Add(speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd})

	if s.End(EndSilence) {
		t.Fatalf("expected the remote signal to have ended the turn already")
	}
	u := receive(t, s)
	if u.Reason != EndRemote || u.Text != "hello" {
		t.Fatalf("unexpected utterance %+v", u)
	}

	s.Add(transcriptResult("late", true))
	s.Add(speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd})
	expectNoUtterance(t, s)

	s.Reset()
	s.Add(transcriptResult("next turn", true))
	s.End(EndSilence)
	if u := receive(t, s); u.Text != "next turn" {
		t.Fatalf("expected buffer to be reset between turns, got %q", u.Text)
	}
}

func TestSegmenterSpeechFinalEndsTurn(t *testing.T) {
	s := NewSegmenter()
	s.Add(speechtotext.Result{Kind: speechtotext.ResultTranscript, Transcript: "stop", IsFinal: true, SpeechFinal: true})

	if u := receive(t, s); u.Text != "stop" || u.Reason != EndRemote {
		t.Fatalf("unexpected utterance %+v", u)
	}
}

func TestSegmenterIgnoresRemoteEndWithoutSpeech(t *testing.T) {
	s := NewSegmenter()
	s.Add(speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd})
	s.Add(transcriptResult("noise", false))
	s.Add(speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd})
	expectNoUtterance(t, s)

	if !s.End(EndSilence) {
		t.Fatalf("expected silence to still end the turn")
	}
	if u := receive(t, s); !u.IsEmpty() {
		t.Fatalf("expected an empty utterance, got %q", u.Text)
	}
}

func TestSegmenterSurfacesInterims(t *testing.T) {
	var interims []string
	finals := atomic.Int32{}
	s := NewSegmenter(
		WithInterimCallback(func(transcript string) { interims = append(interims, transcript) }),
		WithFinalCallback(func(string) { finals.Add(1) }),
	)

	s.Add(transcriptResult("What's the", false))
	s.Add(transcriptResult("What's the weather", true))
	s.Add(transcriptResult("like", false))

	if len(interims) != 2 {
		t.Fatalf("expected 2 interim callbacks, got %d", len(interims))
	}
	if interims[0] != "What's the" {
		t.Fatalf("unexpected first interim %q", interims[0])
	}
	if interims[1] != "What's the weather like" {
		t.Fatalf("expected interim to include finals, got %q", interims[1])
	}
	if got := finals.Load(); got != 1 {
		t.Fatalf("expected one final callback, got %d", got)
	}

	s.End(EndSilence)
	if u := receive(t, s); u.Text != "What's the weather" {
		t.Fatalf("expected interims to be excluded from the utterance, got %q", u.Text)
	}
}

func TestSegmenterConsume(t *testing.T) {
	s := NewSegmenter()
	results := make(chan speechtotext.Result, 3)
	results <- transcriptResult("from", true)
	results <- transcriptResult("channel", true)
	results <- speechtotext.Result{Kind: speechtotext.ResultUtteranceEnd}
	close(results)

	done := make(chan struct{})
	go func() {
		s.Consume(context.Background(), results)
		close(done)
	}()

	if u := receive(t, s); u.Text != "from channel" {
		t.Fatalf("unexpected utterance %q", u.Text)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Consume to return once the channel closed")
	}
}
