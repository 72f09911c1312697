package miniaudio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/aida/core/audio"
)

func TestCaptureStreamAssemblesFrames(t *testing.T) {
	s := &captureStream{
		format:      audio.FrameFormat{SampleRate: 16000, Channels: 1, FrameLength: 4},
		frames:      make(chan audio.Frame, 4),
		readTimeout: time.Second,
		closed:      make(chan struct{}),
	}

	// 3 samples, then 7 samples: two full frames and two leftover samples
	s.collect([]byte{1, 0, 2, 0, 3, 0})
	s.collect([]byte{4, 0, 5, 0, 6, 0, 7, 0, 8, 0, 9, 0, 10, 0})

	ctx := context.Background()
	for _, want := range [][]int16{{1, 2, 3, 4}, {5, 6, 7, 8}} {
		frame, err := s.ReadFrame(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := frame.Samples()
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected samples %v, got %v", want, got)
			}
		}
	}
	if len(s.partial) != 4 {
		t.Fatalf("expected 2 leftover samples, got %d bytes", len(s.partial))
	}
}

func TestCaptureStreamKeepsNewestFrames(t *testing.T) {
	s := &captureStream{
		format:      audio.FrameFormat{SampleRate: 16000, Channels: 1, FrameLength: 1},
		frames:      make(chan audio.Frame, 2),
		readTimeout: time.Second,
		closed:      make(chan struct{}),
	}
	s.collect([]byte{1, 0, 2, 0, 3, 0})

	for _, want := range []int16{2, 3} {
		frame, err := s.ReadFrame(context.Background())
		if err != nil || frame.Samples()[0] != want {
			t.Fatalf("expected sample %d, got %v (err=%v)", want, frame.Samples(), err)
		}
	}
}

func TestCaptureStreamReadTimeout(t *testing.T) {
	s := &captureStream{
		frames:      make(chan audio.Frame, 1),
		readTimeout: 10 * time.Millisecond,
		closed:      make(chan struct{}),
	}
	if _, err := s.ReadFrame(context.Background()); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func TestPlaybackMarksReleaseAfterPlaying(t *testing.T) {
	c := &playbackClient{}
	c.pending = bytes.Repeat([]byte{7}, 10)
	mark := playbackMark{position: 10, reached: make(chan struct{})}
	c.marks = append(c.marks, mark)

	process := c.processAudio(2)
	out := make([]byte, 8)
	process(out, nil, 4)
	select {
	case <-mark.reached:
		t.Fatalf("expected mark to wait for the remaining audio")
	default:
	}

	process(out, nil, 4)
	select {
	case <-mark.reached:
	default:
		t.Fatalf("expected mark to be reached")
	}
	if len(c.pending) != 0 {
		t.Fatalf("expected no pending audio, got %d bytes", len(c.pending))
	}
	for _, b := range out[2:] {
		if b != 0 {
			t.Fatalf("expected silence after the end of the audio, got %v", out)
		}
	}
}

func TestPlaybackClearReleasesMarks(t *testing.T) {
	c := &playbackClient{}
	c.pending = make([]byte, 100)
	mark := playbackMark{position: 100, reached: make(chan struct{})}
	c.marks = append(c.marks, mark)

	c.ClearBuffer()
	select {
	case <-mark.reached:
	default:
		t.Fatalf("expected clear to release pending marks")
	}
}
