package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/koscakluka/aida/core/audio"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoice   = "DsPSGqcqUCSgArVUBBGy"
	DefaultModel   = "eleven_turbo_v2"
)

var ErrMissingAPIKey = errors.New("elevenlabs api key not found")

var pcmSampleRates = []int{16000, 22050, 24000, 44100}

// TextToSpeechClient synthesizes speech with the ElevenLabs streaming
// endpoint.
type TextToSpeechClient struct {
	voice   string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ texttospeech.Synthesizer = (*TextToSpeechClient)(nil)

func NewTextToSpeechClient(opts ...texttospeech.TextToSpeechOption) (*TextToSpeechClient, error) {
	options := texttospeech.TextToSpeechOptions{
		Voice:   DefaultVoice,
		Model:   DefaultModel,
		BaseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(&options)
	}

	apiKey := options.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if apiKey == "" {
		return nil, fault.New(fault.KindInitialization, "speech credentials", ErrMissingAPIKey)
	}

	return &TextToSpeechClient{
		voice:   options.Voice,
		model:   options.Model,
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(options.BaseURL, "/"),
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}, nil
}

// outputFormat maps an encoding to the ElevenLabs output_format parameter.
func outputFormat(encoding audio.EncodingInfo) (string, error) {
	switch encoding.Format {
	case audio.EncodingLinear16:
		for _, rate := range pcmSampleRates {
			if rate == encoding.SampleRate {
				return fmt.Sprintf("pcm_%d", rate), nil
			}
		}
	case audio.EncodingMulaw:
		if encoding.SampleRate == 8000 {
			return "ulaw_8000", nil
		}
	}
	return "", fmt.Errorf("unsupported encoding %s at %d Hz", encoding.Format, encoding.SampleRate)
}

func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, encoding audio.EncodingInfo) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	span.SetAttributes(
		attribute.String("tts.voice", c.voice),
		attribute.String("tts.model", c.model),
		attribute.Int("tts.characters", len(text)),
	)

	format, err := outputFormat(encoding)
	if err != nil {
		err = fault.New(fault.KindInitialization, "speech encoding", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported encoding")
		span.End()
		return nil, err
	}

	body, err := json.Marshal(requestBody{
		Text:    text,
		ModelID: c.model,
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		span.End()
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?%s",
		c.baseURL, url.PathEscape(c.voice), url.Values{"output_format": {format}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		span.End()
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/*")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else {
			err = fault.New(fault.KindConnection, "speech request", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		span.End()
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		err := fault.New(fault.KindProtocol, "speech request",
			fmt.Errorf("non-OK HTTP status %s: %s", resp.Status, strings.TrimSpace(string(errorBody))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "request rejected")
		span.End()
		return nil, err
	}

	return &speechStream{body: resp.Body, span: span}, nil
}

type speechStream struct {
	body      io.ReadCloser
	span      trace.Span
	bytes     int
	closeOnce sync.Once
}

func (s *speechStream) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	s.bytes += n
	return n, err
}

func (s *speechStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
		s.span.SetAttributes(attribute.Int("response.bytes", s.bytes))
		s.span.End()
		logger.Debug("speech stream closed", "bytes", s.bytes)
	})
	return err
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type requestBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}
