package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// link is a single websocket connection together with the loops serving it.
// A lost link is never revived, the client opens a new one instead.
type link struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pong         chan struct{}
	receiverDone chan struct{}

	failOnce sync.Once
	failed   chan struct{}
	failErr  error
}

func newLink(parent context.Context, conn *websocket.Conn) *link {
	ctx, cancel := context.WithCancel(parent)
	l := &link{
		conn:         conn,
		ctx:          ctx,
		cancel:       cancel,
		pong:         make(chan struct{}, 1),
		receiverDone: make(chan struct{}),
		failed:       make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		select {
		case l.pong <- struct{}{}:
		default:
		}
		return nil
	})
	return l
}

// fail marks the link as lost. Only the first error is kept.
func (l *link) fail(err error) {
	l.failOnce.Do(func() {
		l.failErr = err
		close(l.failed)
		l.cancel()
	})
}

func (l *link) write(messageType int, data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return l.conn.WriteMessage(messageType, data)
}

func (l *link) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal control message: %w", err)
	}
	return l.write(websocket.TextMessage, data)
}

func (l *link) ping(deadline time.Time) error {
	return l.conn.WriteControl(websocket.PingMessage, []byte("aida"), deadline)
}

// shutdown cancels the loops, closes the socket and waits for the loops to
// return.
func (l *link) shutdown() {
	l.cancel()
	l.conn.Close()
	l.wg.Wait()
}
