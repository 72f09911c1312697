package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type Tool struct {
	Type     string
	Function ToolFunction

	Execute func(ctx context.Context, arguments string) (string, error)
}

type ToolFunction struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// NewTool describes a function tool whose parameters are the JSON schema of T.
// Arguments are decoded into T before execute is called.
func NewTool[T any](name, description string, execute func(ctx context.Context, params T) (string, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var params T
	schema := reflector.Reflect(params)
	schema.Version = ""

	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        name,
			Description: description,
			Parameters:  schema,
		},
		Execute: func(ctx context.Context, arguments string) (string, error) {
			var params T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &params); err != nil {
					return "", fmt.Errorf("invalid arguments for tool %s: %w", name, err)
				}
			}
			return execute(ctx, params)
		},
	}
}
