package session

import (
	"context"
	"time"

	"github.com/koscakluka/aida/core/capture"
	"github.com/koscakluka/aida/core/speechtotext"
)

const (
	DefaultGreeting           = "Listening now, tell me how I can assist."
	DefaultInactivityTimeout  = 300 * time.Second
	DefaultInactivityWarning  = 50 * time.Second
	DefaultTurnTimeout        = 60 * time.Second
	DefaultPersistTimeout     = 5 * time.Second
	DefaultOpenAttempts       = 3
	DefaultOpenDelay          = time.Second
	DefaultTranscriberTimeout = 3 * time.Second
	DefaultRecoveryPause      = time.Second

	apologyMessage        = "I apologize, but I encountered an error processing your request."
	timeoutMessage        = "Sorry, that took too long. Please try again."
	lostConnectionMessage = "Sorry, I lost the connection to the speech service."
	inactivityWarning     = "Are you still there?"
)

// Handler produces the reply to a finished utterance.
type Handler interface {
	Handle(ctx context.Context, utterance, sessionID string) (string, error)
}

// Exchange is a single answered utterance.
type Exchange struct {
	SessionID string
	Utterance string
	Reply     string
	At        time.Time
}

// Recorder persists answered exchanges.
type Recorder interface {
	Record(ctx context.Context, exchange Exchange) error
}

// Speaker plays a reply to completion.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type WakeWordGate interface {
	capture.Gate
	Initialize() error
	Close() error
}

type CaptureLoop interface {
	AwaitWakeWord(ctx context.Context, gate capture.Gate) error
	Stream(ctx context.Context, sink capture.Sink, onTurnEnd func()) error
	Hold()
	Listen()
}

// TranscriberFactory creates the transcription session of a single turn.
type TranscriberFactory func(ctx context.Context) (speechtotext.Transcriber, error)

type OrchestratorOption func(*Orchestrator)

func WithWakeWordGate(gate WakeWordGate) OrchestratorOption {
	return func(o *Orchestrator) { o.gate = gate }
}

func WithCaptureLoop(loop CaptureLoop) OrchestratorOption {
	return func(o *Orchestrator) { o.capture = loop }
}

func WithTranscriberFactory(factory TranscriberFactory) OrchestratorOption {
	return func(o *Orchestrator) { o.newTranscriber = factory }
}

func WithSpeaker(speaker Speaker) OrchestratorOption {
	return func(o *Orchestrator) { o.speaker = speaker }
}

func WithHandler(handler Handler) OrchestratorOption {
	return func(o *Orchestrator) { o.handler = handler }
}

// WithRecorder enables persisting exchanges in the background.
func WithRecorder(recorder Recorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithStatusObserver registers a callback for every state change of the
// session. It may be called from several goroutines and should return
// quickly.
func WithStatusObserver(observer func(Status)) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = observer }
}

func WithGreeting(greeting string) OrchestratorOption {
	return func(o *Orchestrator) { o.options.Greeting = greeting }
}

func WithInactivity(timeout, warningLead time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.options.InactivityTimeout = timeout
		o.options.InactivityWarning = warningLead
	}
}

func WithTurnTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.options.TurnTimeout = timeout }
}

func WithPersistTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.options.PersistTimeout = timeout }
}

// WithOpenRetry bounds how often opening the transcription session is tried
// at the start of a turn.
func WithOpenRetry(attempts int, delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.options.OpenAttempts = attempts
		o.options.OpenDelay = delay
	}
}

// WithContinuousConversation keeps a turn listening for follow-up utterances
// instead of returning to the wake word after every reply.
func WithContinuousConversation(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.options.Continuous = enabled }
}

func WithRecoveryPause(pause time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.options.RecoveryPause = pause }
}

type Options struct {
	Greeting           string
	InactivityTimeout  time.Duration
	InactivityWarning  time.Duration
	TurnTimeout        time.Duration
	PersistTimeout     time.Duration
	OpenAttempts       int
	OpenDelay          time.Duration
	TranscriberTimeout time.Duration
	RecoveryPause      time.Duration
	Continuous         bool
}

func DefaultOptions() Options {
	return Options{
		Greeting:           DefaultGreeting,
		InactivityTimeout:  DefaultInactivityTimeout,
		InactivityWarning:  DefaultInactivityWarning,
		TurnTimeout:        DefaultTurnTimeout,
		PersistTimeout:     DefaultPersistTimeout,
		OpenAttempts:       DefaultOpenAttempts,
		OpenDelay:          DefaultOpenDelay,
		TranscriberTimeout: DefaultTranscriberTimeout,
		RecoveryPause:      DefaultRecoveryPause,
	}
}
