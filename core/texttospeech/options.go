package texttospeech

import (
	"context"
	"io"

	"github.com/koscakluka/aida/core/audio"
)

// Synthesizer turns text into raw audio in the requested encoding.
type Synthesizer interface {
	// Synthesize starts generating speech for text. The returned stream
	// yields audio as it is produced and ends once all of it was generated.
	// Closing the stream early cancels the generation.
	Synthesize(ctx context.Context, text string, encoding audio.EncodingInfo) (io.ReadCloser, error)
}

type TextToSpeechOptions struct {
	Voice   string
	Model   string
	APIKey  string
	BaseURL string
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithVoice(voice string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Voice = voice }
}

func WithModel(model string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.Model = model }
}

func WithAPIKey(apiKey string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.APIKey = apiKey }
}

// WithBaseURL overrides the service endpoint, mostly useful for tests.
func WithBaseURL(baseURL string) TextToSpeechOption {
	return func(o *TextToSpeechOptions) { o.BaseURL = baseURL }
}
