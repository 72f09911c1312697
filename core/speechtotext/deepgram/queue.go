package deepgram

import (
	"context"
	"sync"
)

// frameQueue is a bounded FIFO of outbound audio. Pushing into a full queue
// drops the oldest frame.
type frameQueue struct {
	mu       sync.Mutex
	frames   [][]byte
	capacity int
	closed   bool
	notify   chan struct{}
}

func newFrameQueue(capacity int) *frameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &frameQueue{
		frames:   make([][]byte, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// push reports whether a frame had to be dropped to make room.
func (q *frameQueue) push(frame []byte) (dropped bool, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, false
	}
	if len(q.frames) >= q.capacity {
		q.frames[0] = nil
		q.frames = q.frames[1:]
		dropped = true
	}
	q.frames = append(q.frames, frame)

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped, true
}

// pop blocks until a frame is available, ctx is done or the queue is closed.
func (q *frameQueue) pop(ctx context.Context) ([]byte, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.frames) > 0 {
			frame := q.frames[0]
			q.frames[0] = nil
			q.frames = q.frames[1:]
			q.mu.Unlock()
			return frame, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

// close discards every pending frame and wakes up waiting consumers.
func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.frames = nil
	close(q.notify)
}

func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
