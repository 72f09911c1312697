package speechtotext

import (
	"context"

	"github.com/koscakluka/aida/core/audio"
)

type ResultKind int

const (
	ResultTranscript ResultKind = iota
	// ResultUtteranceEnd is the remote service declaring the end of the
	// current utterance.
	ResultUtteranceEnd
	ResultSpeechStarted
)

type Result struct {
	Kind ResultKind

	Transcript  string
	IsFinal     bool
	SpeechFinal bool
	Confidence  float64
}

// Transcriber is a single streaming transcription session.
type Transcriber interface {
	Connect(ctx context.Context) error
	SendFrame(frame audio.Frame) error
	// Results delivers results in receipt order and is closed once the
	// session terminates.
	Results() <-chan Result
	// Done is closed once the session reached a terminal state, Err then
	// returns the terminal error if there was one.
	Done() <-chan struct{}
	Err() error
	State() SessionState
	Close(ctx context.Context) error
}
