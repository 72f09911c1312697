package groq

import (
	"errors"
	"net/http"
	"os"

	"github.com/koscakluka/aida/core/fault"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

var ErrMissingAPIKey = errors.New("groq API key not set")

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithBaseURL points the client at an OpenAI compatible endpoint other than
// Groq's.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// NewClient creates a chat completion client. The API key falls back to the
// GROQ_API_KEY environment variable.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:   DefaultModel,
		baseURL: defaultBaseURL,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("GROQ_API_KEY")
	}
	if c.apiKey == "" {
		return nil, fault.New(fault.KindInitialization, "groq client", ErrMissingAPIKey)
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }
