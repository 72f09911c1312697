package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

var (
	ErrClosed             = errors.New("transcription client closed")
	ErrAlreadyConnected   = errors.New("transcription client already connected")
	ErrMissingAPIKey      = errors.New("deepgram api key not found")
	ErrHandshakeTimeout   = errors.New("handshake probe timed out")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// TranscriptionClient streams audio to the Deepgram listen API and delivers
// transcripts in receipt order. A client serves a single session: once
// closed, either explicitly or after the reconnect budget is spent, it cannot
// be connected again.
type TranscriptionClient struct {
	options   speechtotext.TranscriptionOptions
	listenURL string
	apiKey    string
	dialer    *websocket.Dialer
	filler    []byte

	state    atomic.Int32
	closing  atomic.Bool
	lastSent atomic.Int64
	attempts atomic.Int32

	mu         sync.Mutex
	link       *link
	started    bool
	connecting bool
	err        error

	queue   *frameQueue
	results chan speechtotext.Result

	runCtx    context.Context
	runCancel context.CancelFunc

	done       chan struct{}
	finishOnce sync.Once
	closeOnce  sync.Once
}

var _ speechtotext.Transcriber = (*TranscriptionClient)(nil)

func NewTranscriptionClient(opts ...speechtotext.TranscriptionOption) (*TranscriptionClient, error) {
	options := speechtotext.DefaultTranscriptionOptions()
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return nil, fault.New(fault.KindInitialization, "transcription encoding", err)
	}

	apiKey := options.APIKey
	if apiKey == "" {
		key, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || key == "" {
			return nil, fault.New(fault.KindInitialization, "transcription credentials", ErrMissingAPIKey)
		}
		apiKey = key
	}

	listenURL, err := buildListenURL(options, *encoding)
	if err != nil {
		return nil, fault.New(fault.KindInitialization, "transcription endpoint", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = options.HandshakeTimeout

	runCtx, runCancel := context.WithCancel(context.Background())
	return &TranscriptionClient{
		options:   options,
		listenURL: listenURL,
		apiKey:    apiKey,
		dialer:    &dialer,
		filler:    options.EncodingInfo.SilenceChunk(options.FrameLength),
		queue:     newFrameQueue(options.QueueSize),
		results:   make(chan speechtotext.Result, max(options.ResultBufferSize, 1)),
		runCtx:    runCtx,
		runCancel: runCancel,
		done:      make(chan struct{}),
	}, nil
}

func buildListenURL(options speechtotext.TranscriptionOptions, encoding encodingInfo) (string, error) {
	endpoint := options.Endpoint
	if endpoint == "" {
		endpoint = defaultListenURL
	}
	listenURL, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", strconv.Itoa(max(options.Channels, 1)))
	if options.Model != "" {
		queryParams.Set("model", options.Model)
	}
	if options.Language != "" {
		queryParams.Set("language", options.Language)
	}
	if options.SmartFormat {
		queryParams.Set("smart_format", "true")
	}
	if options.InterimResults {
		queryParams.Set("interim_results", "true")
	}
	if options.UtteranceEndMs > 0 {
		// utterance_end_ms is rejected by the service unless interim results
		// are requested as well.
		queryParams.Set("interim_results", "true")
		queryParams.Set("utterance_end_ms", strconv.Itoa(options.UtteranceEndMs))
	}
	if options.EndpointingMs > 0 {
		queryParams.Set("endpointing", strconv.Itoa(options.EndpointingMs))
	}
	if options.VADEvents {
		queryParams.Set("vad_events", "true")
	}

	listenURL.RawQuery = queryParams.Encode()
	return listenURL.String(), nil
}

func (c *TranscriptionClient) State() speechtotext.SessionState {
	return speechtotext.SessionState(c.state.Load())
}

// setState moves the client to s unless it is already closed.
func (c *TranscriptionClient) setState(s speechtotext.SessionState) {
	for {
		current := c.state.Load()
		if speechtotext.SessionState(current) == speechtotext.StateClosed {
			return
		}
		if c.state.CompareAndSwap(current, int32(s)) {
			return
		}
	}
}

func (c *TranscriptionClient) Results() <-chan speechtotext.Result { return c.results }

func (c *TranscriptionClient) Done() <-chan struct{} { return c.done }

// Err returns the terminal error once the client gave up reconnecting. An
// explicitly closed client has no error.
func (c *TranscriptionClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Attempts is the number of the reconnect attempt in progress, zero while
// connected.
func (c *TranscriptionClient) Attempts() int { return int(c.attempts.Load()) }

// Connect opens the connection and verifies it with a liveness probe before
// reporting success. On failure the client stays disconnected and Connect can
// be retried.
func (c *TranscriptionClient) Connect(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "connect transcription")
	defer span.End()

	c.mu.Lock()
	if c.closing.Load() {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.State() != speechtotext.StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.setState(speechtotext.StateConnecting)
	c.connecting = true
	c.mu.Unlock()

	l, err := c.openLink(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connecting = false

	if c.closing.Load() {
		if l != nil {
			l.shutdown()
		}
		c.finish()
		return ErrClosed
	}
	if err != nil {
		c.state.Store(int32(speechtotext.StateDisconnected))
		err = fault.New(fault.KindConnection, "connect", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.link = l
	c.started = true
	c.setState(speechtotext.StateConnected)
	go c.supervise(l)

	logger.Info("Transcription connection established")
	return nil
}

// openLink dials the service, waits for the liveness probe and starts the
// loops of the new connection.
func (c *TranscriptionClient) openLink(ctx context.Context) (*link, error) {
	ctx, span := tracer.Start(ctx, "open transcription link")
	defer span.End()

	dialCtx, cancel := context.WithTimeout(ctx, c.options.HandshakeTimeout)
	defer cancel()
	stop := context.AfterFunc(c.runCtx, cancel)
	defer stop()

	conn, _, err := c.dialer.DialContext(dialCtx, c.listenURL,
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l := newLink(c.runCtx, conn)
	l.wg.Add(1)
	go c.receive(l)

	if err := c.probe(dialCtx, l); err != nil {
		l.fail(err)
		l.shutdown()
		err = fmt.Errorf("liveness probe failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l.wg.Add(2)
	go c.send(l)
	go c.keepAlive(l)
	return l, nil
}

func (c *TranscriptionClient) probe(ctx context.Context, l *link) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.options.HandshakeTimeout)
	}
	if err := l.ping(deadline); err != nil {
		return fmt.Errorf("failed to send ping: %w", err)
	}

	select {
	case <-l.pong:
		return nil
	case <-l.failed:
		return l.failErr
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrHandshakeTimeout
		}
		return ctx.Err()
	}
}

// SendAudio queues raw PCM for the sender loop. Frames queued while the
// connection is being restored are sent once it is back, up to the queue
// capacity.
func (c *TranscriptionClient) SendAudio(data []byte) error {
	if c.closing.Load() || c.State() == speechtotext.StateClosed {
		return ErrClosed
	}

	dropped, ok := c.queue.push(data)
	if !ok {
		return ErrClosed
	}
	if dropped {
		droppedFrameCounter.Add(c.runCtx, 1)
		logger.Debug("Dropped oldest queued audio frame")
	}
	return nil
}

func (c *TranscriptionClient) SendFrame(frame audio.Frame) error {
	return c.SendAudio(frame.Bytes())
}

func (c *TranscriptionClient) send(l *link) {
	defer l.wg.Done()

	for {
		frame, ok := c.queue.pop(l.ctx)
		if !ok {
			return
		}
		if err := l.write(websocket.BinaryMessage, frame); err != nil {
			if !c.closing.Load() {
				l.fail(fmt.Errorf("failed to write audio: %w", err))
			}
			return
		}
		c.lastSent.Store(time.Now().UnixNano())
	}
}

func (c *TranscriptionClient) keepAlive(l *link) {
	defer l.wg.Done()

	interval := c.options.KeepAliveInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, c.lastSent.Load())) < interval {
				continue
			}

			if err := l.writeJSON(keepAliveMessage); err != nil {
				if !c.closing.Load() {
					l.fail(fmt.Errorf("failed to write keepalive: %w", err))
				}
				return
			}
			keepAliveCounter.Add(l.ctx, 1)

			if c.options.KeepAliveFiller && len(c.filler) > 0 {
				if err := l.write(websocket.BinaryMessage, c.filler); err != nil {
					if !c.closing.Load() {
						l.fail(fmt.Errorf("failed to write silence filler: %w", err))
					}
					return
				}
			}
		}
	}
}

func (c *TranscriptionClient) receive(l *link) {
	defer l.wg.Done()
	defer close(l.receiverDone)

	for {
		msgType, msg, err := l.conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() && l.ctx.Err() == nil {
				l.fail(fmt.Errorf("failed to read message: %w", err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		result, ok, err := parseMessage(msg)
		if err != nil {
			logger.Warn("Skipping malformed transcription message", "error", err)
			continue
		}
		if !ok {
			continue
		}

		select {
		case c.results <- result:
		case <-l.ctx.Done():
			return
		}
	}
}

// supervise owns the connection lifecycle once connected: it replaces lost
// links until the reconnect budget is spent or the client is closed.
func (c *TranscriptionClient) supervise(l *link) {
	defer c.finish()

	for {
		select {
		case <-c.runCtx.Done():
			l.shutdown()
			return
		case <-l.failed:
		}

		l.shutdown()
		if c.closing.Load() {
			return
		}

		logger.Warn("Transcription connection lost", "error", l.failErr)
		c.setState(speechtotext.StateReconnecting)

		next, err := c.reconnect()
		if err != nil {
			if !c.closing.Load() {
				c.terminate(err)
			}
			return
		}

		c.mu.Lock()
		c.link = next
		c.mu.Unlock()
		l = next
	}
}

func (c *TranscriptionClient) reconnect() (*link, error) {
	ctx, span := tracer.Start(c.runCtx, "reconnect transcription")
	defer span.End()

	policy := c.options.RetryPolicy
	var lastErr error
	for attempt := 1; !policy.Exhausted(attempt); attempt++ {
		c.attempts.Store(int32(attempt))
		if err := policy.Wait(ctx, attempt); err != nil {
			return nil, err
		}

		reconnectCounter.Add(ctx, 1)
		l, err := c.openLink(ctx)
		if err == nil {
			c.attempts.Store(0)
			c.setState(speechtotext.StateConnected)
			span.SetAttributes(attribute.Int("reconnect.attempts", attempt))
			logger.Info("Transcription connection restored", "attempt", attempt)
			return l, nil
		}

		lastErr = err
		logger.Warn("Transcription reconnect attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	err := fmt.Errorf("%w after %d attempts: %w", ErrReconnectExhausted, policy.MaxAttempts, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (c *TranscriptionClient) terminate(err error) {
	c.mu.Lock()
	c.err = fault.New(fault.KindConnection, "reconnect", err)
	c.mu.Unlock()

	c.setState(speechtotext.StateClosed)
	c.queue.close()
	logger.Error("Transcription session closed after failed reconnects", "error", err)
}

// finish releases the consumers of Results and Done. It must only run once
// no receiver can deliver results anymore.
func (c *TranscriptionClient) finish() {
	c.finishOnce.Do(func() {
		close(c.results)
		close(c.done)
	})
}

// Close ends the session. It asks the service to flush the final results,
// gives the receiver until the close timeout to drain them and then stops
// every loop. Closing an already closed client is a no-op.
func (c *TranscriptionClient) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		ctx, span := tracer.Start(ctx, "close transcription")
		defer span.End()

		c.mu.Lock()
		c.closing.Store(true)
		c.setState(speechtotext.StateClosed)
		started, connecting, l := c.started, c.connecting, c.link
		c.mu.Unlock()

		c.queue.close()

		if started && l != nil {
			if err := l.writeJSON(closeStreamMessage); err != nil {
				logger.Debug("Failed to send close stream message", "error", err)
			}

			timer := time.NewTimer(c.options.CloseTimeout)
			select {
			case <-l.receiverDone:
			case <-timer.C:
			case <-ctx.Done():
			}
			timer.Stop()
		}

		c.runCancel()
		if !started && !connecting {
			c.finish()
		}

		timer := time.NewTimer(c.options.CloseTimeout)
		defer timer.Stop()
		select {
		case <-c.done:
		case <-timer.C:
			logger.Warn("Transcription loops did not stop within the close timeout")
		}
	})
	return nil
}
