package llms

type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is a single entry of a conversation sent to or received from an
// LLM.
type Message struct {
	Role      MessageRole
	Content   string
	ToolCalls []ToolCall

	// ToolCallID is the ID of the tool call that a tool message answers
	ToolCallID string
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

// Response is everything an LLM produced for a single prompt, including the
// tool calls it made on the way to the final answer.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Messages  []Message
}
