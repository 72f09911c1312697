package wakeword

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
)

var (
	ErrNotInitialized = errors.New("wake word gate not initialized")
	ErrFrameLength    = errors.New("frame length does not match the detector")
)

// Detector is a keyword spotting engine working on fixed-size PCM frames.
type Detector interface {
	Init() error
	Process(pcm []int16) (bool, error)
	FrameLength() int
	SampleRate() int
	Close() error
}

// Gate scans captured audio for the activation keyword.
type Gate struct {
	detector Detector

	mu          sync.Mutex
	initialized bool
}

func NewGate(detector Detector) *Gate {
	return &Gate{detector: detector}
}

// Initialize prepares the detector. A failure is a configuration problem and
// is never retried.
func (g *Gate) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initialized {
		return nil
	}

	if err := g.detector.Init(); err != nil {
		return fault.New(fault.KindInitialization, "wake word init", err)
	}
	g.initialized = true
	logger.Info("wake word gate initialized",
		"frame_length", g.detector.FrameLength(),
		"sample_rate", g.detector.SampleRate())
	return nil
}

// Process reports whether the keyword was spoken in frame.
func (g *Gate) Process(frame audio.Frame) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return false, ErrNotInitialized
	}
	if frame.Len() != g.detector.FrameLength() {
		return false, fmt.Errorf("%w: got %d samples, want %d", ErrFrameLength, frame.Len(), g.detector.FrameLength())
	}

	detected, err := g.detector.Process(frame.Samples())
	if err != nil {
		return false, fmt.Errorf("failed to process wake word frame: %w", err)
	}
	if detected {
		detectionCounter.Add(context.Background(), 1)
	}
	return detected, nil
}

func (g *Gate) FrameLength() int { return g.detector.FrameLength() }

func (g *Gate) SampleRate() int { return g.detector.SampleRate() }

// FrameFormat is the capture format the detector requires.
func (g *Gate) FrameFormat() audio.FrameFormat {
	return audio.FrameFormat{
		SampleRate:  g.detector.SampleRate(),
		Channels:    1,
		FrameLength: g.detector.FrameLength(),
	}
}

func (g *Gate) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.initialized {
		return nil
	}
	g.initialized = false
	return g.detector.Close()
}
