package wakeword

import (
	"errors"
	"testing"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
)

type fakeDetector struct {
	initErr error
	// detectOn is the peak amplitude that counts as the keyword
	detectOn int16
	closed   bool
}

func (d *fakeDetector) Init() error { return d.initErr }

func (d *fakeDetector) Process(pcm []int16) (bool, error) {
	for _, s := range pcm {
		if s == d.detectOn {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDetector) FrameLength() int { return 512 }
func (d *fakeDetector) SampleRate() int  { return 16000 }
func (d *fakeDetector) Close() error     { d.closed = true; return nil }

func frameWith(length int, value int16) audio.Frame {
	samples := make([]int16, length)
	samples[length/2] = value
	return audio.NewFrame(samples)
}

func TestGateDetectsKeyword(t *testing.T) {
	gate := NewGate(&fakeDetector{detectOn: 1000})
	if err := gate.Initialize(); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}

	detected, err := gate.Process(frameWith(512, 5))
	if err != nil || detected {
		t.Fatalf("expected no detection, got %v (err=%v)", detected, err)
	}
	detected, err = gate.Process(frameWith(512, 1000))
	if err != nil || !detected {
		t.Fatalf("expected detection, got %v (err=%v)", detected, err)
	}
}

func TestGateRejectsWrongFrameLength(t *testing.T) {
	gate := NewGate(&fakeDetector{})
	if err := gate.Initialize(); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}

	if _, err := gate.Process(frameWith(1024, 0)); !errors.Is(err, ErrFrameLength) {
		t.Fatalf("expected frame length error, got %v", err)
	}
}

func TestGateRequiresInitialization(t *testing.T) {
	gate := NewGate(&fakeDetector{})
	if _, err := gate.Process(frameWith(512, 0)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestGateInitFailureIsInitializationFault(t *testing.T) {
	initErr := errors.New("invalid access key")
	gate := NewGate(&fakeDetector{initErr: initErr})

	err := gate.Initialize()
	if !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected initialization fault, got %v", err)
	}
	if !errors.Is(err, initErr) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
}

func TestGateFrameFormatAndClose(t *testing.T) {
	detector := &fakeDetector{}
	gate := NewGate(detector)

	format := gate.FrameFormat()
	if format.FrameLength != 512 || format.SampleRate != 16000 || format.Channels != 1 {
		t.Fatalf("unexpected frame format %+v", format)
	}

	if err := gate.Close(); err != nil || detector.closed {
		t.Fatalf("expected close of an uninitialized gate to be a no-op")
	}
	_ = gate.Initialize()
	if err := gate.Close(); err != nil || !detector.closed {
		t.Fatalf("expected detector to be closed, err=%v", err)
	}
}
