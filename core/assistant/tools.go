package assistant

import (
	"context"

	"github.com/koscakluka/aida/core/llms"
	"github.com/koscakluka/aida/core/memory"
)

type webSearchParams struct {
	Query string `json:"query" jsonschema_description:"A specific, focused search query for current information"`
}

type searchMemoryParams struct {
	Query string `json:"query" jsonschema_description:"What to look for in earlier conversations"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of memories to return"`
}

func (a *Assistant) tools() []llms.Tool {
	var tools []llms.Tool
	if a.search != nil {
		tools = append(tools, llms.NewTool("web_search", webSearchDescription,
			func(ctx context.Context, p webSearchParams) (string, error) {
				return a.search.Search(ctx, p.Query), nil
			}))
	}
	if a.memory != nil {
		tools = append(tools, llms.NewTool("search_memory", searchMemoryDescription,
			func(ctx context.Context, p searchMemoryParams) (string, error) {
				limit := p.Limit
				if limit <= 0 || limit > a.memoryLimit {
					limit = a.memoryLimit
				}
				entries, err := a.memory.Search(ctx, a.userID, p.Query, limit)
				if err != nil {
					logger.Error("memory search failed", "error", err)
					return "Error retrieving memories.", nil
				}
				return memory.Format(entries), nil
			}))
	}
	return tools
}
