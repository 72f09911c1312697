package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/texttospeech"
)

type fakeSpeakService struct {
	*httptest.Server
	texts   chan string
	queries chan string
	// respond is called after a Flush with the connection to answer on.
	respond func(conn *websocket.Conn)
}

func newFakeSpeakService(t *testing.T, respond func(conn *websocket.Conn)) *fakeSpeakService {
	t.Helper()

	s := &fakeSpeakService{
		texts:   make(chan string, 4),
		queries: make(chan string, 4),
		respond: respond,
	}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.queries <- r.URL.RawQuery

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var parsed speakMessage
			if err := json.Unmarshal(msg, &parsed); err != nil {
				return
			}
			switch parsed.Type {
			case "Speak":
				s.texts <- parsed.Text
			case "Flush":
				s.respond(conn)
			case "Close":
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeSpeakService) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func newTestClient(t *testing.T, s *fakeSpeakService) *TextToSpeechClient {
	t.Helper()

	client, err := NewTextToSpeechClient(
		texttospeech.WithAPIKey("test-key"),
		texttospeech.WithBaseURL(s.wsURL()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestSynthesizeStreamsAudioUntilFlushed(t *testing.T) {
	service := newFakeSpeakService(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Metadata"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{5, 6})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
	})
	client := newTestClient(t, service)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := client.Synthesize(ctx, "It's sunny", audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("failed to read audio: %v", err)
	}
	if string(data) != string([]byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected audio %v", data)
	}

	if text := <-service.texts; text != "It's sunny" {
		t.Fatalf("unexpected text %q", text)
	}
	query := <-service.queries
	for _, want := range []string{"encoding=linear16", "sample_rate=16000", "container=none", "model=" + string(defaultVoice)} {
		if !strings.Contains(query, want) {
			t.Fatalf("expected query %q to contain %q", query, want)
		}
	}
}

func TestSynthesizeReportsServiceError(t *testing.T) {
	service := newFakeSpeakService(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"Error","code":"INVALID_INPUT","description":"bad text"}`))
	})
	client := newTestClient(t, service)

	stream, err := client.Synthesize(context.Background(), "hello", audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}
	defer stream.Close()

	_, err = io.ReadAll(stream)
	if !fault.Is(err, fault.KindProtocol) {
		t.Fatalf("expected protocol fault, got %v", err)
	}
}

func TestSynthesizeCloseCancels(t *testing.T) {
	release := make(chan struct{})
	service := newFakeSpeakService(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		<-release
	})
	defer close(release)
	client := newTestClient(t, service)

	stream, err := client.Synthesize(context.Background(), "a long answer", audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}

	buf := make([]byte, 2)
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("failed to read first chunk: %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if _, err := stream.Read(buf); err == nil || err == io.EOF {
		t.Fatalf("expected read after close to fail, got %v", err)
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("expected close to be idempotent, got %v", err)
	}
}

func TestSynthesizeHonorsContext(t *testing.T) {
	release := make(chan struct{})
	service := newFakeSpeakService(t, func(conn *websocket.Conn) { <-release })
	defer close(release)
	client := newTestClient(t, service)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Synthesize(ctx, "hello", audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}
	defer stream.Close()

	cancel()
	_, err = io.ReadAll(stream)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestSynthesizeRejectsUnsupportedEncoding(t *testing.T) {
	client, err := NewTextToSpeechClient(texttospeech.WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Synthesize(context.Background(), "hi", audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw})
	if !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected initialization fault, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")

	if _, err := NewTextToSpeechClient(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected missing api key, got %v", err)
	}
	if _, err := NewTextToSpeechClient(texttospeech.WithAPIKey("k"), texttospeech.WithVoice("robot")); !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected invalid voice to fail, got %v", err)
	}
}
