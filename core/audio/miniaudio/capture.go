package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/aida/core/audio"
)

var (
	ErrStreamClosed = errors.New("capture stream closed")
	ErrReadTimeout  = errors.New("capture device delivered no audio in time")
)

// captureStream assembles the variable sized device callbacks into frames of
// the requested length.
type captureStream struct {
	device *malgo.Device
	format audio.FrameFormat

	frames  chan audio.Frame
	partial []byte

	readTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func openCaptureStream(audioContext *malgo.AllocatedContext, format audio.FrameFormat, buffered int) (*captureStream, error) {
	channels := 1
	sampleFormat := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(sampleFormat) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(format.SampleRate)
	config.Capture.Format = sampleFormat
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	s := &captureStream{
		format:      format,
		frames:      make(chan audio.Frame, buffered),
		readTimeout: max(4*format.FrameDuration(), 500*time.Millisecond),
		closed:      make(chan struct{}),
	}

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			s.collect(pInput[:n])
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	s.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}
	return s, nil
}

// collect runs on the device thread.
func (s *captureStream) collect(data []byte) {
	frameBytes := s.format.FrameLength * 2
	s.partial = append(s.partial, data...)
	for len(s.partial) >= frameBytes {
		frame, err := audio.FrameFromBytes(s.partial[:frameBytes])
		s.partial = s.partial[frameBytes:]
		if err != nil {
			continue
		}

		select {
		case s.frames <- frame:
		default:
			// reader fell behind, keep the newest audio
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- frame:
			default:
			}
		}
	}
	if len(s.partial) == 0 {
		s.partial = nil
	}
}

func (s *captureStream) ReadFrame(ctx context.Context) (audio.Frame, error) {
	timer := time.NewTimer(s.readTimeout)
	defer timer.Stop()

	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.closed:
		return audio.Frame{}, ErrStreamClosed
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	case <-timer.C:
		return audio.Frame{}, ErrReadTimeout
	}
}

func (s *captureStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		if stopErr := s.device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
		s.device.Uninit()
	})
	return err
}
