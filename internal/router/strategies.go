package router

import (
	"context"
	"errors"

	"github.com/kalambet/ragroute/internal/websearch"
)

// Strategies runs the two answer strategies.
type Strategies interface {
	RAG(ctx context.Context, query string) (string, error)
	Web(ctx context.Context, query string) (*websearch.ResultSet, error)
}

// Answerer answers questions about the indexed document.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, query string) (*websearch.ResultSet, error)
}

// ErrWebSearchDisabled is returned by the web strategy when no search
// backend is configured.
var ErrWebSearchDisabled = errors.New("web search is not configured (set TAVILY_API_KEY)")

// Toolbox binds the strategies to their backends. Search may be nil.
type Toolbox struct {
	Answerer Answerer
	Search   Searcher
}

func (t Toolbox) RAG(ctx context.Context, query string) (string, error) {
	return t.Answerer.Answer(ctx, query)
}

func (t Toolbox) Web(ctx context.Context, query string) (*websearch.ResultSet, error) {
	if t.Search == nil {
		return nil, ErrWebSearchDisabled
	}
	return t.Search.Search(ctx, query)
}
