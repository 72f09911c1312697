package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/texttospeech"
)

func TestSynthesizeStreamsPCM(t *testing.T) {
	pcm := bytes.Repeat([]byte{1, 2}, 4096)
	var got requestBody
	var gotPath, gotFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(pcm)
	}))
	defer server.Close()

	client, err := NewTextToSpeechClient(texttospeech.WithAPIKey("test-key"), texttospeech.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	stream, err := client.Synthesize(context.Background(), "Hello there", audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !bytes.Equal(data, pcm) {
		t.Fatalf("expected %d bytes of audio, got %d", len(pcm), len(data))
	}
	if gotPath != "/v1/text-to-speech/"+DefaultVoice+"/stream" || gotFormat != "pcm_16000" {
		t.Fatalf("unexpected request %s output_format=%s", gotPath, gotFormat)
	}
	if got.Text != "Hello there" || got.ModelID != DefaultModel {
		t.Fatalf("unexpected request body %+v", got)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := NewTextToSpeechClient(texttospeech.WithAPIKey("test-key"), texttospeech.WithBaseURL(server.URL))

	if _, err := client.Synthesize(context.Background(), "hi", audio.GetDefaultEncodingInfo()); !fault.Is(err, fault.KindProtocol) {
		t.Fatalf("expected protocol fault, got %v", err)
	}

	_, err := client.Synthesize(context.Background(), "hi", audio.EncodingInfo{SampleRate: 48000, Format: audio.EncodingLinear16})
	if !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected unsupported encoding to fail, got %v", err)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	if _, err := NewTextToSpeechClient(); !fault.Is(err, fault.KindInitialization) {
		t.Fatalf("expected initialization fault, got %v", err)
	}
}
