package miniaudio

import (
	"fmt"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/capture"
	"github.com/koscakluka/aida/core/playback"
)

type ClientOptions struct {
	PlaybackSampleRate int
	// CaptureBuffer is the number of assembled frames kept for a slow reader.
	CaptureBuffer int
}

type ClientOption func(*ClientOptions)

func WithPlaybackSampleRate(sampleRate int) ClientOption {
	return func(o *ClientOptions) { o.PlaybackSampleRate = sampleRate }
}

func WithCaptureBuffer(frames int) ClientOption {
	return func(o *ClientOptions) { o.CaptureBuffer = frames }
}

// Client is a miniaudio backed playback output and microphone.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext  *malgo.AllocatedContext
	playback      playbackClient
	captureBuffer int
}

var (
	_ capture.Microphone       = (*Client)(nil)
	_ playback.LatencyReporter = (*Client)(nil)
)

func NewClient(opts ...ClientOption) (*Client, error) {
	options := ClientOptions{
		PlaybackSampleRate: audio.DefaultSampleRate,
		CaptureBuffer:      8,
	}
	for _, opt := range opts {
		opt(&options)
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := &Client{audioContext: audioCtx}
	if err := client.playback.Init(audioCtx, uint32(options.PlaybackSampleRate)); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.playback.Start(); err != nil {
		client.Close()
		return nil, err
	}
	client.captureBuffer = max(options.CaptureBuffer, 1)

	return client, nil
}

// OpenStream starts a capture device producing frames in format.
func (c *Client) OpenStream(format audio.FrameFormat) (capture.InputStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return openCaptureStream(c.audioContext, format, c.captureBuffer)
}

func (c *Client) Close() {
	_ = c.playback.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) SendAudio(audio []byte) error { return c.playback.SendAudio(audio) }

func (c *Client) ClearBuffer() { c.playback.ClearBuffer() }

func (c *Client) AwaitMark() error { return c.playback.AwaitMark() }

// Latency is the audio still buffered in the device once a mark is reached.
func (c *Client) Latency() time.Duration { return c.playback.latency() }

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: int(c.playback.sampleRate),
		Format:     audio.EncodingLinear16,
	}
}
