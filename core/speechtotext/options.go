package speechtotext

import (
	"time"

	"github.com/koscakluka/aida/core/audio"
)

const (
	DefaultModel             = "nova-3"
	DefaultLanguage          = "en-US"
	DefaultUtteranceEndMs    = 1000
	DefaultEndpointingMs     = 300
	DefaultKeepAliveInterval = 9 * time.Second
	DefaultQueueSize         = 64
	DefaultResultBufferSize  = 64
	DefaultHandshakeTimeout  = 5 * time.Second
	DefaultCloseTimeout      = 2 * time.Second
)

type TranscriptionOptions struct {
	EncodingInfo audio.EncodingInfo
	Channels     int
	// FrameLength is the number of samples in the filler frame sent
	// alongside keepalives.
	FrameLength int

	Model          string
	Language       string
	InterimResults bool
	UtteranceEndMs int
	EndpointingMs  int
	VADEvents      bool
	SmartFormat    bool

	KeepAliveInterval time.Duration
	// KeepAliveFiller makes the keepalive loop send a silent frame together
	// with the KeepAlive control message.
	KeepAliveFiller bool

	QueueSize        int
	ResultBufferSize int

	RetryPolicy      RetryPolicy
	HandshakeTimeout time.Duration
	CloseTimeout     time.Duration

	Endpoint string
	APIKey   string
}

func DefaultTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		EncodingInfo:      audio.GetDefaultEncodingInfo(),
		Channels:          audio.DefaultChannels,
		FrameLength:       audio.DefaultFrameLength,
		Model:             DefaultModel,
		Language:          DefaultLanguage,
		InterimResults:    true,
		UtteranceEndMs:    DefaultUtteranceEndMs,
		EndpointingMs:     DefaultEndpointingMs,
		VADEvents:         true,
		SmartFormat:       true,
		KeepAliveInterval: DefaultKeepAliveInterval,
		QueueSize:         DefaultQueueSize,
		ResultBufferSize:  DefaultResultBufferSize,
		RetryPolicy:       DefaultRetryPolicy(),
		HandshakeTimeout:  DefaultHandshakeTimeout,
		CloseTimeout:      DefaultCloseTimeout,
	}
}

type TranscriptionOption func(*TranscriptionOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// WithFrameFormat sets the encoding, channel count and filler frame length
// from the capture format.
func WithFrameFormat(format audio.FrameFormat) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = format.EncodingInfo()
		o.Channels = format.Channels
		o.FrameLength = format.FrameLength
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithInterimResults(enabled bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimResults = enabled
	}
}

func WithUtteranceEnd(ms int) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.UtteranceEndMs = ms
	}
}

func WithEndpointing(ms int) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EndpointingMs = ms
	}
}

// WithVADEvents toggles SpeechStarted notifications from the service.
func WithVADEvents(enabled bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.VADEvents = enabled
	}
}

func WithKeepAlive(interval time.Duration, filler bool) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.KeepAliveInterval = interval
		o.KeepAliveFiller = filler
	}
}

func WithQueueSize(size int) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.QueueSize = size
	}
}

func WithResultBufferSize(size int) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ResultBufferSize = size
	}
}

func WithRetryPolicy(policy RetryPolicy) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.RetryPolicy = policy
	}
}

func WithHandshakeTimeout(timeout time.Duration) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.HandshakeTimeout = timeout
	}
}

func WithCloseTimeout(timeout time.Duration) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.CloseTimeout = timeout
	}
}

// WithEndpoint overrides the websocket URL of the transcription service.
func WithEndpoint(endpoint string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Endpoint = endpoint
	}
}

func WithAPIKey(apiKey string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.APIKey = apiKey
	}
}
