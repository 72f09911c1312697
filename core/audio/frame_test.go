package audio

import (
	"errors"
	"testing"
	"time"
)

func TestFrameIsImmutable(t *testing.T) {
	samples := []int16{1, 2, 3}
	frame := NewFrame(samples)
	samples[0] = 100

	if got := frame.Samples()[0]; got != 1 {
		t.Fatalf("expected frame to keep its own copy, got first sample %d", got)
	}

	out := frame.Samples()
	out[1] = 100
	if got := frame.Samples()[1]; got != 2 {
		t.Fatalf("expected accessor to return a copy, got second sample %d", got)
	}
}

func TestFrameBytesRoundTrip(t *testing.T) {
	frame := NewFrame([]int16{0, -1, 32767, -32768, 200})
	decoded, err := FrameFromBytes(frame.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Len() != frame.Len() {
		t.Fatalf("expected %d samples, got %d", frame.Len(), decoded.Len())
	}
	for i, s := range frame.Samples() {
		if decoded.Samples()[i] != s {
			t.Fatalf("sample %d: expected %d, got %d", i, s, decoded.Samples()[i])
		}
	}
}

func TestFrameFromBytesRejectsOddLength(t *testing.T) {
	if _, err := FrameFromBytes([]byte{1, 2, 3}); !errors.Is(err, ErrOddByteCount) {
		t.Fatalf("expected ErrOddByteCount, got %v", err)
	}
}

func TestFramePeak(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		peak    int
	}{
		{name: "empty", samples: nil, peak: 0},
		{name: "positive", samples: []int16{10, 150, 20}, peak: 150},
		{name: "negative", samples: []int16{10, -300, 20}, peak: 300},
		{name: "min int16", samples: []int16{-32768}, peak: 32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewFrame(tt.samples).Peak(); got != tt.peak {
				t.Fatalf("expected peak %d, got %d", tt.peak, got)
			}
		})
	}
}

func TestSilentFrame(t *testing.T) {
	frame := SilentFrame(512)
	if frame.Len() != 512 {
		t.Fatalf("expected 512 samples, got %d", frame.Len())
	}
	if !frame.IsSilent(0) {
		t.Fatalf("expected silent frame to be silent")
	}
}

func TestFrameFormat(t *testing.T) {
	format := DefaultFrameFormat()
	if err := format.Validate(); err != nil {
		t.Fatalf("expected default format to be valid, got %v", err)
	}
	if got := format.FrameDuration(); got != 64*time.Millisecond {
		t.Fatalf("expected 64ms frames, got %s", got)
	}

	format.Channels = 2
	if err := format.Validate(); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat for stereo, got %v", err)
	}
}

func TestSilenceChunk(t *testing.T) {
	chunk := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}.SilenceChunk(4)
	if len(chunk) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(chunk))
	}
	for _, b := range chunk {
		if b != 0xFF {
			t.Fatalf("expected mulaw silence, got %x", b)
		}
	}

	if got := len(GetDefaultEncodingInfo().SilenceChunk(10)); got != 20 {
		t.Fatalf("expected 20 bytes of linear16 silence, got %d", got)
	}
}
