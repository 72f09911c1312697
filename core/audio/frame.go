package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrOddByteCount  = errors.New("pcm16 buffer has an odd number of bytes")
	ErrInvalidFormat = errors.New("invalid frame format")
)

// FrameFormat is the fixed capture shape every frame of a stream honors.
type FrameFormat struct {
	SampleRate  int
	Channels    int
	FrameLength int
}

func DefaultFrameFormat() FrameFormat {
	return FrameFormat{
		SampleRate:  DefaultSampleRate,
		Channels:    DefaultChannels,
		FrameLength: DefaultFrameLength,
	}
}

func (f FrameFormat) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels != 1 {
		return fmt.Errorf("%w: only mono capture is supported, got %d channels", ErrInvalidFormat, f.Channels)
	}
	if f.FrameLength <= 0 {
		return fmt.Errorf("%w: frame length %d", ErrInvalidFormat, f.FrameLength)
	}
	return nil
}

// FrameDuration is how long a single frame of this format lasts.
func (f FrameFormat) FrameDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.FrameLength) * time.Second / time.Duration(f.SampleRate)
}

func (f FrameFormat) EncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: f.SampleRate, Format: EncodingLinear16}
}

// Frame is an immutable block of 16-bit signed mono PCM samples.
type Frame struct {
	samples []int16
}

// NewFrame copies samples into a new frame.
func NewFrame(samples []int16) Frame {
	return Frame{samples: slices.Clone(samples)}
}

// FrameFromBytes decodes little-endian PCM16 into a frame.
func FrameFromBytes(data []byte) (Frame, error) {
	if len(data)%2 != 0 {
		return Frame{}, ErrOddByteCount
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Frame{samples: samples}, nil
}

// SilentFrame is a frame of the given length holding only zero samples.
func SilentFrame(length int) Frame {
	return Frame{samples: make([]int16, length)}
}

func (f Frame) Len() int { return len(f.samples) }

func (f Frame) IsZero() bool { return f.samples == nil }

// Samples returns a copy of the frame samples.
func (f Frame) Samples() []int16 { return slices.Clone(f.samples) }

// Bytes encodes the frame as little-endian PCM16.
func (f Frame) Bytes() []byte {
	data := make([]byte, len(f.samples)*2)
	for i, s := range f.samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// Peak is the largest absolute sample value in the frame.
func (f Frame) Peak() int {
	peak := 0
	for _, s := range f.samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// IsSilent reports whether no sample exceeds threshold.
func (f Frame) IsSilent(threshold int) bool {
	return f.Peak() <= threshold
}
