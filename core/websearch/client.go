// Package websearch answers questions that need current information through
// the Perplexity online models.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koscakluka/aida/core/fault"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	DefaultModel   = "llama-3.1-sonar-small-128k-online"
	DefaultTimeout = 30 * time.Second

	// MaxResultLength is the number of characters kept from an answer.
	MaxResultLength = 1000

	FailureMessage = "Unable to perform web search at this time."
)

var (
	ErrMissingAPIKey = errors.New("perplexity API key not set")
	ErrEmptyAnswer   = errors.New("search returned no answer")
)

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

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.client.Timeout = timeout }
}

// NewClient creates a search client. The API key falls back to the
// PERPLEXITY_API_KEY environment variable.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		model:   DefaultModel,
		baseURL: defaultBaseURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("PERPLEXITY_API_KEY")
	}
	if c.apiKey == "" {
		return nil, fault.New(fault.KindInitialization, "websearch client", ErrMissingAPIKey)
	}
	return c, nil
}

// Search answers query with current information. Failures are logged and
// turned into FailureMessage so the answer can always be handed to the LLM.
func (c *Client) Search(ctx context.Context, query string) string {
	answer, err := c.Query(ctx, query)
	if err != nil {
		logger.Error("web search failed", "query", query, "error", err)
		return FailureMessage
	}
	return answer
}

// Query is Search with the error returned to the caller.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "web search")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	searchCounter.Add(ctx, 1)
	answer, err := c.query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		searchFailureCounter.Add(ctx, 1)
		return "", err
	}
	span.SetAttributes(attribute.Int("response.length", len(answer)))
	return truncate(answer, MaxResultLength), nil
}

func (c *Client) query(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(requestBody{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: query}},
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fault.New(fault.KindConnection, "websearch request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fault.New(fault.KindProtocol, "websearch request",
			fmt.Errorf("search failed with status %s: %s", resp.Status, strings.TrimSpace(string(errorBody))))
	}

	var response responseBody
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fault.New(fault.KindProtocol, "websearch response", err)
	}
	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", ErrEmptyAnswer
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// truncate cuts text to limit characters, never splitting a rune.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type responseBody struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}
