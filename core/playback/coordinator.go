package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultChunkSize = 3200 // 100ms of 16kHz linear16

// Output is the playback device.
type Output interface {
	SendAudio(audio []byte) error
	// AwaitMark blocks until everything sent so far has been played.
	AwaitMark() error
	ClearBuffer()
	EncodingInfo() audio.EncodingInfo
}

// LatencyReporter is implemented by outputs that keep audible audio queued in
// the device after AwaitMark returns.
type LatencyReporter interface {
	Latency() time.Duration
}

type CoordinatorOptions struct {
	ChunkSize int
}

type CoordinatorOption func(*CoordinatorOptions)

// WithChunkSize sets how many bytes of synthesized audio are read before
// being handed to the output.
func WithChunkSize(size int) CoordinatorOption {
	return func(o *CoordinatorOptions) {
		if size > 0 {
			o.ChunkSize = size
		}
	}
}

// Coordinator speaks replies and keeps State active for as long as the
// assistant's voice can reach the microphone. Only one reply plays at a time.
type Coordinator struct {
	state       *State
	output      Output
	synthesizer texttospeech.Synthesizer
	options     CoordinatorOptions

	speakMu sync.Mutex
}

func NewCoordinator(state *State, output Output, synthesizer texttospeech.Synthesizer, opts ...CoordinatorOption) *Coordinator {
	options := CoordinatorOptions{ChunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&options)
	}
	if state == nil {
		state = NewState()
	}

	return &Coordinator{
		state:       state,
		output:      output,
		synthesizer: synthesizer,
		options:     options,
	}
}

func (c *Coordinator) State() *State { return c.state }

// Speak synthesizes text and plays it to completion. The state is active from
// the moment synthesis starts until the output drained, also when Speak fails.
func (c *Coordinator) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	ctx, span := tracer.Start(ctx, "speak", trace.WithAttributes(attribute.Int("playback.text_length", len(text))))
	defer span.End()

	c.speakMu.Lock()
	defer c.speakMu.Unlock()

	start := time.Now()
	c.state.begin()
	defer c.state.end()

	if err := c.play(ctx, text); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to speak")
		return err
	}

	speechDuration.Record(ctx, time.Since(start).Seconds())
	return nil
}

func (c *Coordinator) play(ctx context.Context, text string) error {
	stream, err := c.synthesizer.Synthesize(ctx, text, c.output.EncodingInfo())
	if err != nil {
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer stream.Close()

	buf := make([]byte, c.options.ChunkSize)
	for {
		n, readErr := stream.Read(buf)
		if n > 0 {
			if err := c.output.SendAudio(bytes.Clone(buf[:n])); err != nil {
				c.output.ClearBuffer()
				return fault.New(fault.KindDevice, "playback send", err)
			}
			playedBytesCounter.Add(ctx, int64(n))
		}
		if errors.Is(readErr, io.EOF) {
			break
		} else if readErr != nil {
			c.output.ClearBuffer()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to read synthesized speech: %w", readErr)
		}
	}

	drained := make(chan error, 1)
	go func() { drained <- c.output.AwaitMark() }()

	select {
	case err := <-drained:
		if err != nil {
			return fault.New(fault.KindDevice, "playback drain", err)
		}
	case <-ctx.Done():
		c.output.ClearBuffer()
		logger.Debug("playback interrupted", "reason", ctx.Err())
		return ctx.Err()
	}

	return c.awaitDeviceTail(ctx)
}

// awaitDeviceTail waits until the audio still queued in the device after the
// mark has been heard.
func (c *Coordinator) awaitDeviceTail(ctx context.Context) error {
	reporter, ok := c.output.(LatencyReporter)
	if !ok {
		return nil
	}
	latency := reporter.Latency()
	if latency <= 0 {
		return nil
	}

	timer := time.NewTimer(latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		c.output.ClearBuffer()
		return ctx.Err()
	}
}
