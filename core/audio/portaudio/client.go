package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/capture"
)

var ErrStreamClosed = errors.New("capture stream closed")

// Client is a PortAudio backed microphone. PortAudio reads block for exactly
// one frame, which is the behavior the capture loop expects.
type Client struct {
	mu          sync.Mutex
	initialized bool
}

var _ capture.Microphone = (*Client)(nil)

func NewClient() (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Client{initialized: true}, nil
}

func (c *Client) OpenStream(format audio.FrameFormat) (capture.InputStream, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil, errors.New("portaudio terminated")
	}

	in := make([]int16, format.FrameLength)
	stream, err := portaudio.OpenDefaultStream(format.Channels, 0, float64(format.SampleRate), format.FrameLength, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	return &inputStream{stream: stream, in: in}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return nil
	}
	c.initialized = false
	return portaudio.Terminate()
}

type inputStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
	closed bool
}

func (s *inputStream) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.Frame{}, ErrStreamClosed
	}

	if err := s.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			// a late read still carries a full frame
			logger.Debug("portaudio input overflowed")
		} else {
			return audio.Frame{}, fmt.Errorf("failed to read from portaudio stream: %w", err)
		}
	}
	return audio.NewFrame(s.in), nil
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	return errors.Join(stopErr, closeErr)
}
