package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAITimeout = 120 * time.Second
)

// Compile-time check that OpenAIEngine implements Engine.
var _ Engine = (*OpenAIEngine)(nil)

// OpenAIEngine talks to an OpenAI-compatible REST API (OpenAI, OpenRouter,
// vLLM and friends) for chat completions with tools and for embeddings.
type OpenAIEngine struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI creates an engine for api.openai.com with the given API key.
func NewOpenAI(apiKey string) *OpenAIEngine {
	return &OpenAIEngine{
		apiKey:  apiKey,
		baseURL: defaultOpenAIBaseURL,
		httpClient: &http.Client{
			Timeout: defaultOpenAITimeout,
		},
	}
}

// NewOpenAIWithBaseURL creates an engine pointing at a custom base URL.
func NewOpenAIWithBaseURL(apiKey, baseURL string) *OpenAIEngine {
	e := NewOpenAI(apiKey)
	e.baseURL = strings.TrimRight(baseURL, "/")
	return e
}

// wire types for /chat/completions

type oaTool struct {
	Type     string     `json:"type"`
	Function oaFunction `json:"function"`
}

type oaFunction struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
}

type oaChatRequest struct {
	Model       string      `json:"model"`
	Messages    []oaMessage `json:"messages"`
	Tools       []oaTool    `json:"tools,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
}

type oaChatResponse struct {
	Choices []struct {
		Message oaMessage `json:"message"`
	} `json:"choices"`
}

// Chat sends a chat completion request and returns the first choice.
func (e *OpenAIEngine) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	cr := oaChatRequest{
		Model:       req.Model,
		Messages:    make([]oaMessage, len(req.Messages)),
		Temperature: req.Temperature,
	}
	for i, m := range req.Messages {
		om := oaMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			var wire oaToolCall
			wire.ID = tc.ID
			wire.Type = "function"
			wire.Function.Name = tc.Name
			wire.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, wire)
		}
		cr.Messages[i] = om
	}
	for _, t := range req.Tools {
		params := t.Parameters
		cr.Tools = append(cr.Tools, oaTool{
			Type:     "function",
			Function: oaFunction{Name: t.Name, Description: t.Description, Parameters: &params},
		})
	}

	var resp oaChatResponse
	if err := e.postJSON(ctx, "/chat/completions", cr, &resp); err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("chat completion: empty choices")
	}

	msg := resp.Choices[0].Message
	reply := Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}

type oaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type oaEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text using the given model.
func (e *OpenAIEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	var resp oaEmbedResponse
	if err := e.postJSON(ctx, "/embeddings", oaEmbedRequest{Model: model, Input: text}, &resp); err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embeddings array")
	}
	return resp.Data[0].Embedding, nil
}

// IsRunning reports whether GET /models answers with 200.
func (e *OpenAIEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	e.setHeaders(req)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (e *OpenAIEngine) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	e.setHeaders(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (e *OpenAIEngine) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
}
