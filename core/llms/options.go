package llms

import "slices"

const DefaultMaxToolRounds = 4

type PromptOptions struct {
	Instructions    string
	History         []Message
	Tools           []Tool
	ForcedToolsCall bool
	// MaxToolRounds bounds how many times the LLM can call tools before it
	// has to answer.
	MaxToolRounds int
}

type PromptOption func(*PromptOptions)

func WithInstructions(instructions string) PromptOption {
	return func(o *PromptOptions) { o.Instructions = instructions }
}

// WithHistory prepends earlier messages of the conversation to the prompt.
func WithHistory(messages ...Message) PromptOption {
	return func(o *PromptOptions) { o.History = append(o.History, messages...) }
}

func WithTools(tools ...Tool) PromptOption {
	return func(o *PromptOptions) { o.Tools = append(o.Tools, tools...) }
}

// WithForcedTools makes the LLM call one of the given tools before answering.
func WithForcedTools(tools ...Tool) PromptOption {
	return func(o *PromptOptions) {
		o.Tools = append(o.Tools, tools...)
		o.ForcedToolsCall = true
	}
}

func WithMaxToolRounds(rounds int) PromptOption {
	return func(o *PromptOptions) { o.MaxToolRounds = rounds }
}

func NewPromptOptions(opts ...PromptOption) PromptOptions {
	options := PromptOptions{MaxToolRounds: DefaultMaxToolRounds}
	for _, opt := range opts {
		opt(&options)
	}
	options.History = slices.Clone(options.History)
	return options
}

// FindTool returns the tool with the given function name.
func (o PromptOptions) FindTool(name string) (Tool, bool) {
	for _, tool := range o.Tools {
		if tool.Function.Name == name {
			return tool, true
		}
	}
	return Tool{}, false
}
