package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/speechtotext"
	"github.com/koscakluka/aida/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMissingDependency = errors.New("session dependency not configured")
	ErrInactive          = errors.New("turn ended due to inactivity")
	ErrTranscriberClosed = errors.New("transcription session closed")
)

// Orchestrator sequences a voice session: wake word, turn capture, reply and
// back to the wake word. Failures inside a turn never end the run, only
// initialization failures do.
type Orchestrator struct {
	gate           WakeWordGate
	capture        CaptureLoop
	newTranscriber TranscriberFactory
	speaker        Speaker
	handler        Handler
	recorder       Recorder
	observer       func(Status)

	options Options

	sessionID string
	persistWG sync.WaitGroup
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{options: DefaultOptions()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) SessionID() string { return o.sessionID }

func (o *Orchestrator) validate() error {
	var missing []string
	if o.gate == nil {
		missing = append(missing, "wake word gate")
	}
	if o.capture == nil {
		missing = append(missing, "capture loop")
	}
	if o.newTranscriber == nil {
		missing = append(missing, "transcriber factory")
	}
	if o.speaker == nil {
		missing = append(missing, "speaker")
	}
	if o.handler == nil {
		missing = append(missing, "handler")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

func (o *Orchestrator) notify(status Status) {
	if o.observer == nil {
		return
	}
	status.SessionID = o.sessionID
	o.observer(status)
}

// Run serves turns until ctx is done. It only returns an error when the
// session could not be initialized.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.validate(); err != nil {
		return fault.New(fault.KindInitialization, "session setup", err)
	}

	o.sessionID = uuid.NewString()
	ctx, span := tracer.Start(ctx, "run session", trace.WithAttributes(attribute.String("session.id", o.sessionID)))
	defer span.End()

	if err := o.gate.Initialize(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to initialize wake word gate")
		logger.Error("shutting down voice session", "error", err)
		o.notify(Status{State: StateError, Err: err})
		return err
	}
	defer func() {
		if err := o.gate.Close(); err != nil {
			logger.Warn("failed to close wake word gate", "error", err)
		}
	}()
	defer o.awaitPersistence()

	logger.Info("voice session started", "session_id", o.sessionID)
	for ctx.Err() == nil {
		err := o.runTurn(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}

		if fault.Is(err, fault.KindInitialization) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "voice session initialization failed")
			logger.Error("shutting down voice session", "error", err)
			o.notify(Status{State: StateError, Err: err})
			return err
		}

		logger.Error("turn failed", "error", err)
		o.notify(Status{State: StateError, Err: err})
		select {
		case <-ctx.Done():
		case <-time.After(o.options.RecoveryPause):
		}
	}

	o.notify(Status{State: StateStopped})
	logger.Info("voice session stopped", "session_id", o.sessionID)
	return nil
}

// awaitPersistence gives background persistence a bounded time to finish.
func (o *Orchestrator) awaitPersistence() {
	done := make(chan struct{})
	go func() {
		o.persistWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.options.PersistTimeout):
		logger.Warn("gave up waiting for exchanges to be persisted")
	}
}

func (o *Orchestrator) runTurn(ctx context.Context) error {
	o.notify(Status{State: StateIdle})
	if err := o.capture.AwaitWakeWord(ctx, o.gate); err != nil {
		return fmt.Errorf("failed waiting for wake word: %w", err)
	}

	ctx, span := tracer.Start(ctx, "turn")
	defer span.End()
	turnCounter.Add(ctx, 1)

	o.notify(Status{State: StateConnecting})
	transcriber, err := o.openTranscriber(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open transcription session")
		return err
	}
	defer o.closeTranscriber(ctx, transcriber)

	var wg sync.WaitGroup
	defer wg.Wait()
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := NewInactivityTimer(o.options.InactivityTimeout, o.options.InactivityWarning)
	segmenter := transcript.NewSegmenter(
		transcript.WithInterimCallback(func(text string) {
			o.notify(Status{State: StateListening, Interim: text})
		}),
		transcript.WithFinalCallback(func(string) { timer.Reset() }),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		segmenter.Consume(turnCtx, transcriber.Results())
	}()

	captureErr := make(chan error, 1)
	o.capture.Hold()
	wg.Add(1)
	go func() {
		defer wg.Done()
		captureErr <- o.capture.Stream(turnCtx, transcriber, func() {
			segmenter.End(transcript.EndSilence)
		})
	}()

	if err := o.speak(turnCtx, o.options.Greeting); err != nil {
		return err
	}
	o.capture.Listen()

	timer.Start(turnCtx)
	defer timer.Stop()

	for {
		o.notify(Status{State: StateListening})
		utterance, err := o.awaitUtterance(turnCtx, segmenter, transcriber, captureErr, timer)
		if errors.Is(err, ErrInactive) {
			logger.Info("turn ended due to inactivity")
			return nil
		} else if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn interrupted")
			return err
		}

		o.capture.Hold()
		if utterance.IsEmpty() {
			logger.Debug("turn ended without speech", "reason", utterance.Reason)
			return nil
		}
		span.AddEvent("utterance", trace.WithAttributes(
			attribute.String("utterance.end_reason", string(utterance.Reason)),
			attribute.Int("utterance.fragments", utterance.Fragments),
		))

		o.notify(Status{State: StateThinking, Utterance: utterance.Text})
		reply := o.respond(turnCtx, utterance.Text)
		if turnCtx.Err() != nil {
			return turnCtx.Err()
		}

		if err := o.speak(turnCtx, reply); err != nil {
			return err
		}
		o.persist(ctx, Exchange{
			SessionID: o.sessionID,
			Utterance: utterance.Text,
			Reply:     reply,
			At:        time.Now(),
		})
		timer.Reset()

		if !o.options.Continuous {
			return nil
		}
		segmenter.Reset()
		o.capture.Listen()
	}
}

// openTranscriber connects a fresh transcription session with bounded
// retries. Failing to create the client at all is not retried.
func (o *Orchestrator) openTranscriber(ctx context.Context) (speechtotext.Transcriber, error) {
	attempts := max(o.options.OpenAttempts, 1)
	for attempt := 1; ; attempt++ {
		transcriber, err := o.newTranscriber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create transcriber: %w", err)
		}

		err = transcriber.Connect(ctx)
		if err == nil {
			return transcriber, nil
		}
		_ = transcriber.Close(ctx)

		if attempt >= attempts || ctx.Err() != nil {
			return nil, fmt.Errorf("failed to open transcription session after %d attempts: %w", attempt, err)
		}
		logger.Warn("failed to open transcription session", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.options.OpenDelay):
		}
	}
}

func (o *Orchestrator) closeTranscriber(ctx context.Context, transcriber speechtotext.Transcriber) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.options.TranscriberTimeout)
	defer cancel()
	if err := transcriber.Close(ctx); err != nil {
		logger.Warn("failed to close transcription session", "error", err)
	}
}

func (o *Orchestrator) awaitUtterance(
	ctx context.Context,
	segmenter *transcript.Segmenter,
	transcriber speechtotext.Transcriber,
	captureErr <-chan error,
	timer *InactivityTimer,
) (transcript.Utterance, error) {
	for {
		select {
		case utterance := <-segmenter.Utterances():
			return utterance, nil

		case <-transcriber.Done():
			return transcript.Utterance{}, o.reportLostConnection(ctx, transcriber)

		case err := <-captureErr:
			select {
			case <-transcriber.Done():
				// the sink failed because the session ended
				return transcript.Utterance{}, o.reportLostConnection(ctx, transcriber)
			default:
			}
			if err == nil {
				err = errors.New("capture stopped")
			}
			return transcript.Utterance{}, err

		case event := <-timer.Events():
			switch event {
			case InactivityWarning:
				if err := o.speak(ctx, inactivityWarning); err != nil {
					return transcript.Utterance{}, err
				}
				o.notify(Status{State: StateListening})
			case InactivityTimeout:
				return transcript.Utterance{}, ErrInactive
			}

		case <-ctx.Done():
			return transcript.Utterance{}, ctx.Err()
		}
	}
}

func (o *Orchestrator) reportLostConnection(ctx context.Context, transcriber speechtotext.Transcriber) error {
	err := transcriber.Err()
	if err == nil {
		err = ErrTranscriberClosed
	}
	logger.Error("transcription session lost", "error", err)
	o.capture.Hold()
	if speakErr := o.speak(ctx, lostConnectionMessage); speakErr != nil {
		logger.Warn("failed to report lost connection", "error", speakErr)
	}
	return err
}

// respond asks the handler for a reply. It always returns something to say,
// failures are replaced by a spoken fallback.
func (o *Orchestrator) respond(ctx context.Context, utterance string) string {
	ctx, span := tracer.Start(ctx, "respond")
	defer span.End()

	handlerCtx, cancel := context.WithTimeout(ctx, o.options.TurnTimeout)
	defer cancel()

	type response struct {
		reply string
		err   error
	}
	responses := make(chan response, 1)
	start := time.Now()
	go func() {
		reply, err := o.handler.Handle(handlerCtx, utterance, o.sessionID)
		responses <- response{reply: reply, err: err}
	}()

	var (
		reply string
		err   error
	)
	select {
	case r := <-responses:
		reply, err = r.reply, r.err
	case <-handlerCtx.Done():
		err = handlerCtx.Err()
	}
	handlerDuration.Record(ctx, time.Since(start).Seconds())

	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("handler returned an empty reply")
	}
	if err == nil {
		return reply
	}

	fallback := apologyMessage
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fault.New(fault.KindTimeout, "handle utterance", err)
		fallback = timeoutMessage
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "failed to produce reply")
	fallbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("timeout", fault.Is(err, fault.KindTimeout))))
	logger.Error("failed to handle utterance", "error", err)
	return fallback
}

func (o *Orchestrator) speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	o.notify(Status{State: StateSpeaking, Reply: text})
	if err := o.speaker.Speak(ctx, text); err != nil {
		return fmt.Errorf("failed to speak: %w", err)
	}
	return nil
}

// persist records the exchange in the background, bounded by the persist
// timeout so a slow store never holds up the next turn.
func (o *Orchestrator) persist(ctx context.Context, exchange Exchange) {
	if o.recorder == nil {
		return
	}

	o.persistWG.Add(1)
	go func() {
		defer o.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.options.PersistTimeout)
		defer cancel()

		if err := o.recorder.Record(ctx, exchange); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fault.New(fault.KindTimeout, "persist exchange", err)
			}
			logger.Warn("failed to persist exchange", "error", err)
		}
	}()
}
