package playback

import (
	"context"
	"sync"
)

// State is the speaking handle shared between playback and capture. It is
// written only by the Coordinator; everything else reads it.
type State struct {
	mu     sync.Mutex
	active bool
	idle   chan struct{}
}

func NewState() *State {
	idle := make(chan struct{})
	close(idle)
	return &State{idle: idle}
}

// Active reports whether the assistant's voice is being synthesized or
// played right now.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *State) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.idle = make(chan struct{})
}

func (s *State) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.idle)
}

// WaitIdle blocks until nothing is playing.
func (s *State) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
