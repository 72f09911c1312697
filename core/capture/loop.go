package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultSilenceThreshold = 200
	DefaultSilenceFrames    = 100
)

var ErrBusy = errors.New("capture loop already owns the microphone")

// Microphone opens fixed-format input streams on the capture device.
type Microphone interface {
	OpenStream(format audio.FrameFormat) (InputStream, error)
}

// InputStream reads exactly one frame of the opened format per call.
type InputStream interface {
	ReadFrame(ctx context.Context) (audio.Frame, error)
	Close() error
}

// Sink receives the frames of an active turn.
type Sink interface {
	SendFrame(frame audio.Frame) error
}

// Gate decides whether a frame contains the activation keyword.
type Gate interface {
	FrameFormat() audio.FrameFormat
	Process(frame audio.Frame) (bool, error)
}

// SpeakingState tells whether the assistant is currently talking.
type SpeakingState interface {
	Active() bool
}

type LoopOptions struct {
	Format           audio.FrameFormat
	SilenceThreshold int
	SilenceFrames    int
}

type LoopOption func(*LoopOptions)

func WithFrameFormat(format audio.FrameFormat) LoopOption {
	return func(o *LoopOptions) { o.Format = format }
}

// WithSilenceDetection sets the peak amplitude at or below which a frame is
// silent and how many consecutive silent frames are tolerated. The turn ends
// on the first silent frame past that limit.
func WithSilenceDetection(threshold, frames int) LoopOption {
	return func(o *LoopOptions) {
		o.SilenceThreshold = threshold
		o.SilenceFrames = frames
	}
}

// Loop reads the microphone one frame at a time and routes the frames either
// to the wake word gate or to the transcription sink. The loop owns the
// microphone stream for the duration of a phase.
type Loop struct {
	mic      Microphone
	speaking SpeakingState
	options  LoopOptions
	filler   audio.Frame

	running atomic.Bool
	holding atomic.Bool

	silentMu     sync.Mutex
	silentFrames int
}

func NewLoop(mic Microphone, speaking SpeakingState, opts ...LoopOption) *Loop {
	options := LoopOptions{
		Format:           audio.DefaultFrameFormat(),
		SilenceThreshold: DefaultSilenceThreshold,
		SilenceFrames:    DefaultSilenceFrames,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Loop{
		mic:      mic,
		speaking: speaking,
		options:  options,
		filler:   audio.SilentFrame(options.Format.FrameLength),
	}
}

func (l *Loop) Format() audio.FrameFormat { return l.options.Format }

func (l *Loop) open(format audio.FrameFormat) (InputStream, error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	if err := format.Validate(); err != nil {
		l.running.Store(false)
		return nil, fault.New(fault.KindDevice, "capture format", err)
	}
	stream, err := l.mic.OpenStream(format)
	if err != nil {
		l.running.Store(false)
		return nil, fault.New(fault.KindDevice, "capture open", err)
	}
	return stream, nil
}

func (l *Loop) release(stream InputStream) {
	if err := stream.Close(); err != nil {
		logger.Warn("failed to close capture stream", "error", err)
	}
	l.running.Store(false)
}

// AwaitWakeWord feeds microphone frames to the gate until it detects the
// keyword. The stream is opened in the format the gate requires.
func (l *Loop) AwaitWakeWord(ctx context.Context, gate Gate) error {
	ctx, span := tracer.Start(ctx, "await wake word")
	defer span.End()

	stream, err := l.open(gate.FrameFormat())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open capture stream")
		return err
	}
	defer l.release(stream)

	for {
		frame, err := stream.ReadFrame(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			err = fault.New(fault.KindDevice, "capture read", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read frame")
			return err
		}
		framesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", "wakeword")))

		detected, err := gate.Process(frame)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to process frame")
			return fmt.Errorf("wake word gate failed: %w", err)
		}
		if detected {
			logger.Info("wake word detected")
			return nil
		}
	}
}

// Stream forwards microphone frames to sink until ctx is done. While the
// assistant speaks or the loop is held, silence filler is sent instead and no
// silence is counted. Once more than the configured number of consecutive
// silent frames were read, onTurnEnd is called and the loop holds until Listen is called.
func (l *Loop) Stream(ctx context.Context, sink Sink, onTurnEnd func()) error {
	ctx, span := tracer.Start(ctx, "stream turn audio")
	defer span.End()

	stream, err := l.open(l.options.Format)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open capture stream")
		return err
	}
	defer l.release(stream)

	for {
		frame, err := stream.ReadFrame(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			err = fault.New(fault.KindDevice, "capture read", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read frame")
			return err
		}
		framesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", "turn")))

		if err := sink.SendFrame(l.route(ctx, frame, onTurnEnd)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to forward frame")
			return fmt.Errorf("failed to forward frame: %w", err)
		}
	}
}

// route picks the frame to forward for a frame read from the microphone.
func (l *Loop) route(ctx context.Context, frame audio.Frame, onTurnEnd func()) audio.Frame {
	if l.holding.Load() || (l.speaking != nil && l.speaking.Active()) {
		fillerCounter.Add(ctx, 1)
		return l.filler
	}

	if !frame.IsSilent(l.options.SilenceThreshold) {
		l.silentMu.Lock()
		l.silentFrames = 0
		l.silentMu.Unlock()
		return frame
	}
	silentCounter.Add(ctx, 1)

	l.silentMu.Lock()
	l.silentFrames++
	ended := l.options.SilenceFrames > 0 && l.silentFrames > l.options.SilenceFrames
	if ended {
		l.silentFrames = 0
	}
	l.silentMu.Unlock()

	if !ended {
		return frame
	}

	l.holding.Store(true)
	logger.Debug("silence limit reached", "frames", l.options.SilenceFrames)
	if onTurnEnd != nil {
		onTurnEnd()
	}
	fillerCounter.Add(ctx, 1)
	return l.filler
}

// Hold makes the loop send filler instead of microphone audio.
func (l *Loop) Hold() { l.holding.Store(true) }

// Listen resumes forwarding microphone audio with a fresh silence count.
func (l *Loop) Listen() {
	l.silentMu.Lock()
	l.silentFrames = 0
	l.silentMu.Unlock()
	l.holding.Store(false)
}

// Holding reports whether microphone audio is currently withheld.
func (l *Loop) Holding() bool { return l.holding.Load() }
