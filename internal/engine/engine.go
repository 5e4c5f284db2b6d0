package engine

import (
	"context"
	"fmt"
	"time"
)

// Chatter sends a chat completion request to a language model.
type Chatter interface {
	// Chat returns the model's reply. When req.Tools is non-empty the model
	// may answer with tool calls instead of (or alongside) text.
	Chat(ctx context.Context, req ChatRequest) (Reply, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Engine abstracts a model backend (OpenAI-compatible API or a local Ollama).
// Consumers such as the router and the embedder depend on this interface
// instead of a concrete client.
type Engine interface {
	Chatter
	Embedder

	// IsRunning reports whether the backend is reachable.
	IsRunning(ctx context.Context) bool
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Options selects and configures a backend.
type Options struct {
	Provider      string
	APIKey        string
	BaseURL       string
	OllamaBaseURL string
	// Timeout bounds one OpenAI request. Zero keeps the 120s default.
	// Ollama requests are unbounded since local models can be slow to load.
	Timeout time.Duration
}

// New returns the Engine for the configured provider.
func New(opts Options) (Engine, error) {
	switch opts.Provider {
	case ProviderOpenAI, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		e := NewOpenAI(opts.APIKey)
		if opts.BaseURL != "" {
			e = NewOpenAIWithBaseURL(opts.APIKey, opts.BaseURL)
		}
		if opts.Timeout > 0 {
			e.httpClient.Timeout = opts.Timeout
		}
		return e, nil
	case ProviderOllama:
		return NewOllamaEngine(opts.OllamaBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

// StatusError is returned when an upstream responds with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
