package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/ragroute/internal/retrieval"
	"github.com/kalambet/ragroute/internal/websearch"
)

// MCPRetriever abstracts semantic search over the indexed document.
type MCPRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// MCPSearcher abstracts the web search backend.
type MCPSearcher interface {
	Search(ctx context.Context, query string) (*websearch.ResultSet, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Router    Asker
	Retriever MCPRetriever
	Searcher  MCPSearcher // optional; if nil, web_search returns an error
}

const defaultMCPSession = "mcp"

// NewMCPServer creates an MCP server exposing the router and its two
// strategies as tools.
func NewMCPServer(deps MCPDeps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ragroute",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("ragroute answers questions about a document on Sound, falling back to live web search for everything else."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Ask a question. The router answers from the document or the web, whichever fits."),
			mcp.WithString("query", mcp.Description("The question"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Conversation to continue (default \"mcp\")")),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search the indexed document and return the most relevant chunks."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 4)")),
		),
		mcpRecall(deps),
	)

	s.AddTool(
		mcp.NewTool("web_search",
			mcp.WithDescription("Run a live web search and return the raw results."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpWebSearch(deps),
	)

	return s
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		// Blank input is ignored, as in the form UI.
		query = strings.TrimSpace(query)
		if query == "" {
			return mcpText(""), nil
		}
		id := req.GetString("session_id", defaultMCPSession)

		turn, err := deps.Router.Ask(ctx, id, query)
		if err != nil {
			return mcpError(fmt.Sprintf("Error: %v", err)), nil
		}
		return mcpText(turn.Reply.Content), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 4)
		if limit <= 0 {
			limit = 4
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Retriever.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}

		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		type chunkResult struct {
			ID    string  `json:"id"`
			Page  int     `json:"page"`
			Text  string  `json:"text"`
			Score float32 `json:"score"`
		}

		results := make([]chunkResult, len(chunks))
		for i, c := range chunks {
			results[i] = chunkResult{ID: c.ID, Page: c.Page, Text: c.Text, Score: c.Score}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpWebSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Searcher == nil {
			return mcpError("web search not available: no Tavily API key configured"), nil
		}
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		set, err := deps.Searcher.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		b, err := json.Marshal(set)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
