package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSpeakURL = "wss://api.deepgram.com/v1/speak"
	writeWait       = 10 * time.Second
)

var ErrMissingAPIKey = errors.New("deepgram api key not found")

// TextToSpeechClient synthesizes speech over the Deepgram speak websocket.
// Every Synthesize call opens its own connection so concurrent requests never
// share a text buffer.
type TextToSpeechClient struct {
	voice   Voice
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
}

var _ texttospeech.Synthesizer = (*TextToSpeechClient)(nil)

func NewTextToSpeechClient(opts ...texttospeech.TextToSpeechOption) (*TextToSpeechClient, error) {
	options := texttospeech.TextToSpeechOptions{Voice: string(defaultVoice)}
	for _, opt := range opts {
		opt(&options)
	}

	if !slices.Contains(GetAvailableVoices(), Voice(options.Voice)) {
		return nil, fault.New(fault.KindInitialization, "speech voice", fmt.Errorf("invalid voice %q", options.Voice))
	}

	apiKey := options.APIKey
	if apiKey == "" {
		key, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok || key == "" {
			return nil, fault.New(fault.KindInitialization, "speech credentials", ErrMissingAPIKey)
		}
		apiKey = key
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultSpeakURL
	}

	return &TextToSpeechClient{
		voice:   Voice(options.Voice),
		apiKey:  apiKey,
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
	}, nil
}

func (c *TextToSpeechClient) SetVoice(voice Voice) {
	c.voice = voice
}

func (c *TextToSpeechClient) speakURL(encoding audio.EncodingInfo) (string, error) {
	speakURL, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid speak url: %w", err)
	}

	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return "", fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}
	switch encoding.Format {
	case audio.EncodingLinear16:
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", fmt.Errorf("unsupported sample rate for %s encoding", encoding.Format.Name())
		}
	default:
		return "", fmt.Errorf("unsupported encoding %q", encoding.Format.Name())
	}

	queryParams := speakURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("model", string(c.voice))
	queryParams.Set("container", "none")
	speakURL.RawQuery = queryParams.Encode()
	return speakURL.String(), nil
}

// Synthesize sends text in a single Speak message followed by a Flush. Audio
// is streamed back until the service confirms the flush.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, encoding audio.EncodingInfo) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech", trace.WithAttributes(
		attribute.String("tts.voice", string(c.voice)),
		attribute.Int("tts.text_length", len(text)),
	))

	speakURL, err := c.speakURL(encoding)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid encoding")
		span.End()
		return nil, fault.New(fault.KindInitialization, "speech encoding", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, speakURL, http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open websocket")
		span.End()
		return nil, fault.New(fault.KindConnection, "speech connect", err)
	}

	pr, pw := io.Pipe()
	stream := &speechStream{conn: conn, reader: pr, writer: pw, span: span}
	// cancelling ctx aborts a synthesis that is still running
	context.AfterFunc(ctx, func() { stream.finish(ctx.Err()) })

	if err := stream.writeJSON(speakMessage{Type: "Speak", Text: text}); err != nil {
		stream.finish(err)
		return nil, fault.New(fault.KindConnection, "speech send text", err)
	}
	if err := stream.writeJSON(controlMessage{Type: "Flush"}); err != nil {
		stream.finish(err)
		return nil, fault.New(fault.KindConnection, "speech flush", err)
	}

	go stream.receive()
	return stream, nil
}

type controlMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type serverMessage struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
}

// speechStream pipes binary frames of a single synthesis to the reader.
type speechStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	reader *io.PipeReader
	writer *io.PipeWriter
	span   trace.Span

	bytes     atomic.Int64
	closeOnce sync.Once
}

func (s *speechStream) Read(p []byte) (int, error) { return s.reader.Read(p) }

// Close cancels the synthesis if it is still running.
func (s *speechStream) Close() error {
	s.finish(io.ErrClosedPipe)
	s.reader.Close()
	return nil
}

func (s *speechStream) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// finish ends the stream. A nil err lets the reader drain what was already
// received and then see io.EOF.
func (s *speechStream) finish(err error) {
	s.closeOnce.Do(func() {
		_ = s.writeJSON(controlMessage{Type: "Close"})
		_ = s.conn.Close()

		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, "speech synthesis failed")
			s.writer.CloseWithError(err)
		} else {
			s.writer.Close()
		}
		s.span.SetAttributes(attribute.Int64("tts.audio_bytes", s.bytes.Load()))
		s.span.End()
	})
}

func (s *speechStream) receive() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.finish(nil)
			} else {
				s.finish(fault.New(fault.KindConnection, "speech receive", err))
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			s.bytes.Add(int64(len(msg)))
			if _, err := s.writer.Write(msg); err != nil {
				// reader went away
				s.finish(err)
				return
			}
		case websocket.TextMessage:
			var parsed serverMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				logger.Debug("failed to decode speak message", "error", err)
				continue
			}
			switch parsed.Type {
			case "Flushed":
				s.finish(nil)
				return
			case "Warning":
				logger.Warn("speech service warning", "code", parsed.Code, "description", parsed.Description)
			case "Error":
				s.finish(fault.New(fault.KindProtocol, "speech synthesis", fmt.Errorf("%s: %s", parsed.Code, parsed.Description)))
				return
			default:
				logger.Debug("ignored speak message", "type", parsed.Type)
			}
		}
	}
}
