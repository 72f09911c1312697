package groq

import (
	"github.com/invopop/jsonschema"
	"github.com/koscakluka/aida/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// Tool is the wire format of a function tool.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

func toMessages(instructions string, history []llms.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}
	for _, msg := range history {
		wire := message{
			Role:       messageRole(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, toolCall{
				ID:   call.ID,
				Type: "function",
				Function: toolCallFunction{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		messages = append(messages, wire)
	}
	return messages
}

// mergeToolCalls folds streamed tool call deltas into complete calls. Deltas
// of the same call share an index and carry fragments of the arguments.
func mergeToolCalls(calls []toolCall, deltas []toolCall) []toolCall {
	for _, delta := range deltas {
		if delta.Index != nil {
			merged := false
			for i := range calls {
				if calls[i].Index != nil && *calls[i].Index == *delta.Index {
					calls[i].Function.Arguments += delta.Function.Arguments
					if delta.ID != "" {
						calls[i].ID = delta.ID
					}
					if delta.Function.Name != "" {
						calls[i].Function.Name = delta.Function.Name
					}
					merged = true
					break
				}
			}
			if merged {
				continue
			}
		}
		if delta.Type == "" {
			delta.Type = "function"
		}
		calls = append(calls, delta)
	}
	return calls
}
