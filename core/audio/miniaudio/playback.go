package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

var (
	ErrDeviceNotInitialized = errors.New("device not initialized")
	ErrDeviceNotStarted     = errors.New("device not started")
)

type playbackClient struct {
	device     *malgo.Device
	sampleRate uint32
	// queued is the number of frames the device buffers ahead of the speaker
	queued uint32

	pending []byte
	marks   []playbackMark

	mu      sync.Mutex
	audioMu sync.Mutex
}

type playbackMark struct {
	// position is the number of pending bytes that have to be played before
	// the mark is reached
	position int
	reached  chan struct{}
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = sampleRate
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: c.processAudio(bytesPerFrame),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	c.device = device
	c.sampleRate = sampleRate
	c.queued = config.PeriodSizeInFrames * config.Periods
	return nil
}

// latency is how long audio handed to the device takes to become audible.
func (c *playbackClient) latency() time.Duration {
	if c.sampleRate == 0 {
		return 0
	}
	return time.Duration(c.queued) * time.Second / time.Duration(c.sampleRate)
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return ErrDeviceNotInitialized
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return ErrDeviceNotInitialized
	} else if !device.IsStarted() {
		return ErrDeviceNotStarted
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.pending = append(c.pending, audio...)
	return nil
}

// ClearBuffer drops everything not yet played. Marks waiting on the dropped
// audio are released.
func (c *playbackClient) ClearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.pending = nil
	for _, mark := range c.marks {
		close(mark.reached)
	}
	c.marks = nil
}

// AwaitMark blocks until all audio sent before the call has been played or
// cleared.
func (c *playbackClient) AwaitMark() error {
	c.mu.Lock()
	device := c.device
	c.mu.Unlock()
	if device == nil {
		return ErrDeviceNotInitialized
	}

	c.audioMu.Lock()
	if len(c.pending) == 0 {
		c.audioMu.Unlock()
		return nil
	}
	mark := playbackMark{position: len(c.pending), reached: make(chan struct{})}
	c.marks = append(c.marks, mark)
	c.audioMu.Unlock()

	<-mark.reached
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return ErrDeviceNotInitialized
	}
	c.device.Uninit()
	c.device = nil

	c.ClearBuffer()
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		defer c.audioMu.Unlock()

		played := copy(pOutput[:min(need, len(pOutput))], c.pending)
		c.pending = c.pending[played:]
		if len(c.pending) == 0 {
			c.pending = nil
		}
		// the device does not zero the buffer for us
		clear(pOutput[played:min(need, len(pOutput))])

		reached := 0
		for i := range c.marks {
			c.marks[i].position -= played
			if c.marks[i].position <= 0 {
				close(c.marks[i].reached)
				reached++
			}
		}
		c.marks = c.marks[reached:]
	}
}
