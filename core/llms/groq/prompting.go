package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/aida/core/fault"
	"github.com/koscakluka/aida/core/llms"
	"github.com/koscakluka/aida/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Prompt sends prompt to the LLM and runs the tools it asks for until it
// answers with plain content or runs out of tool rounds.
func (c *Client) Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	options := llms.NewPromptOptions(opts...)
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.history", len(options.History)),
		attribute.Int("request.tools", len(options.Tools)),
	)

	messages := toMessages(options.Instructions, options.History)
	messages = append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})

	var toolChoice *string
	var tools []Tool
	if len(options.Tools) > 0 {
		toolChoice = utils.Ptr("auto")
		if options.ForcedToolsCall {
			toolChoice = utils.Ptr("required")
		}
		if err := copier.Copy(&tools, options.Tools); err != nil {
			err = fmt.Errorf("error converting tools: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to convert tools")
			return nil, err
		}
	}

	response := &llms.Response{}
	for round := 0; ; round++ {
		reqBody := requestBody{
			Model:    c.model,
			Messages: messages,
			Stream:   true,
		}
		if round < options.MaxToolRounds {
			reqBody.Tools = tools
			reqBody.ToolChoice = toolChoice
			if round > 0 && options.ForcedToolsCall {
				reqBody.ToolChoice = utils.Ptr("auto")
			}
		}

		content, toolCalls, err := c.complete(ctx, reqBody)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to complete prompt")
			return nil, err
		}

		messages = append(messages, message{
			Role:      messageRoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})
		msg := llms.Message{
			Role:    llms.MessageRoleAssistant,
			Content: content,
		}
		for _, call := range toolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llms.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
		response.Messages = append(response.Messages, msg)

		if len(toolCalls) == 0 {
			response.Content = strings.TrimSpace(content)
			span.SetAttributes(attribute.Int("response.rounds", round+1))
			return response, nil
		}

		for _, call := range toolCalls {
			result := c.execute(ctx, options, call)
			toolCallCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", call.Function.Name)))

			messages = append(messages, message{
				ToolCallID: call.ID,
				Role:       messageRoleTool,
				Content:    result,
			})
			response.Messages = append(response.Messages, llms.Message{
				ToolCallID: call.ID,
				Role:       llms.MessageRoleTool,
				Content:    result,
			})
			response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
				Response:  result,
			})
		}
	}
}

func (c *Client) execute(ctx context.Context, options llms.PromptOptions, call toolCall) string {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Function.Name))

	tool, ok := options.FindTool(call.Function.Name)
	if !ok || tool.Execute == nil {
		logger.Warn("llm called unknown tool", "tool", call.Function.Name)
		return fmt.Sprintf("Error: unknown tool %q", call.Function.Name)
	}

	result, err := tool.Execute(ctx, call.Function.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		logger.Warn("error executing tool", "tool", call.Function.Name, "error", err)
		return "Error: " + err.Error()
	}
	return result
}

// complete runs a single streamed chat completion.
func (c *Client) complete(ctx context.Context, reqBody requestBody) (string, []toolCall, error) {
	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return "", nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		return "", nil, fault.New(fault.KindConnection, "groq request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fault.New(fault.KindProtocol, "groq request",
			fmt.Errorf("non-OK HTTP status %s: %s", resp.Status, strings.TrimSpace(string(errorBody))))
	}

	toolCalls := []toolCall{}
	var content strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
		if len(chunk) == 0 {
			continue
		}
		if chunk == endMessage {
			break
		}

		var responseBody streamingResponseBody
		if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
			logger.Warn("error unmarshalling chunk", "error", err)
			continue
		}
		if responseBody.Error != nil {
			return "", nil, fault.New(fault.KindProtocol, "groq stream", fmt.Errorf("%s", responseBody.Error.Message))
		}
		if len(responseBody.Choices) == 0 {
			continue
		}
		delta := responseBody.Choices[0].Delta
		toolCalls = mergeToolCalls(toolCalls, delta.ToolCalls)
		content.WriteString(delta.Content)
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		return "", nil, fault.New(fault.KindConnection, "groq stream", err)
	}

	for i := range toolCalls {
		toolCalls[i].Index = nil
	}
	return content.String(), toolCalls, nil
}

type requestBody struct {
	Model      string    `json:"model"`
	Messages   []message `json:"messages"`
	Stream     bool      `json:"stream"`
	ToolChoice *string   `json:"tool_choice,omitempty"`
	Tools      []Tool    `json:"tools,omitempty"`
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role         string     `json:"role,omitempty"`
			Content      string     `json:"content,omitempty"`
			ToolCalls    []toolCall `json:"tool_calls,omitempty"`
			FinishReason *string    `json:"finish_reason,omitempty"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
