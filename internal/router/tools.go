package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/ragroute/internal/engine"
)

// Tool names the model may call.
const (
	ToolRAG       = "rag_tool"
	ToolWebSearch = "web_search_tool"
)

var (
	// ErrUnknownTool is returned when the model calls a tool that was not declared.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrBadArguments is returned when tool-call arguments are not valid JSON
	// or lack a non-empty user_query.
	ErrBadArguments = errors.New("malformed tool arguments")
)

// Tools returns the declarations offered to the classifier.
func Tools() []engine.Tool {
	return []engine.Tool{
		{
			Name:        ToolRAG,
			Description: "Invokes the RAG chain to provide an answer to the user's query from the document about Sound.",
			Parameters:  querySchema("The user's input query to use for RAG"),
		},
		{
			Name:        ToolWebSearch,
			Description: "Runs a web search to provide an answer based on the user's query.",
			Parameters:  querySchema("The user's input query to use for Web Search"),
		},
	}
}

func querySchema(desc string) engine.Schema {
	return engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"user_query": {Type: "string", Description: desc},
		},
		Required: []string{"user_query"},
	}
}

type toolArgs struct {
	UserQuery *string `json:"user_query"`
}

// ParseToolCall turns a model tool call into an Invocation.
func ParseToolCall(tc engine.ToolCall) (Invocation, error) {
	var args toolArgs
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrBadArguments, tc.Name, err)
	}
	if args.UserQuery == nil || strings.TrimSpace(*args.UserQuery) == "" {
		return nil, fmt.Errorf("%w for %s: missing user_query", ErrBadArguments, tc.Name)
	}
	q := *args.UserQuery

	switch tc.Name {
	case ToolRAG:
		return RagCall{Query: q}, nil
	case ToolWebSearch:
		return WebCall{Query: q}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)
	}
}

// encodeArgs renders an Invocation back into tool-call arguments.
func encodeArgs(inv Invocation) string {
	b, _ := json.Marshal(map[string]string{"user_query": inv.UserQuery()})
	return string(b)
}
