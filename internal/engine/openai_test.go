package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenAIEngine_ChatText(t *testing.T) {
	var gotAuth string
	var got oaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"id":"c1","choices":[{"message":{"role":"assistant","content":"Hello!"}}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("test-key", srv.URL)
	reply, err := e.Chat(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []Message{{Role: "system", Content: "policy"}, {Role: "user", Content: "hi"}},
		Temperature: Float(0),
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", reply.Content, "Hello!")
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("got %d tool calls, want 0", len(reply.ToolCalls))
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if got.Model != "gpt-4o-mini" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("request = %+v", got)
	}
	if got.Temperature == nil || *got.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", got.Temperature)
	}
	if len(got.Tools) != 0 {
		t.Errorf("tools = %+v, want none", got.Tools)
	}
}

func TestOpenAIEngine_ChatToolCall(t *testing.T) {
	var got oaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"web_search_tool","arguments":"{\"user_query\":\"weather in Tokyo\"}"}}]}}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("k", srv.URL)
	reply, err := e.Chat(context.Background(), ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: "user", Content: "weather in Tokyo"}},
		Tools: []Tool{{
			Name: "web_search_tool",
			Parameters: Schema{
				Type:       "object",
				Properties: map[string]SchemaProperty{"user_query": {Type: "string"}},
				Required:   []string{"user_query"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(got.Tools) != 1 || got.Tools[0].Type != "function" || got.Tools[0].Function.Parameters.Required[0] != "user_query" {
		t.Errorf("tools sent = %+v", got.Tools)
	}
	if len(reply.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(reply.ToolCalls))
	}
	tc := reply.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "web_search_tool" || tc.Arguments != `{"user_query":"weather in Tokyo"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestOpenAIEngine_ChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("k", srv.URL)
	if _, err := e.Chat(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIEngine_RateLimitNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"slow down"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("k", srv.URL)
	_, err := e.Chat(context.Background(), ChatRequest{Model: "m"})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("Code = %d, want 429", se.Code)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times, want 1", calls)
	}
}

func TestOpenAIEngine_Embed(t *testing.T) {
	var got oaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("k", srv.URL)
	vec, err := e.Embed(context.Background(), "text-embedding-3-small", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d floats, want 3", len(vec))
	}
	if got.Model != "text-embedding-3-small" || got.Input != "hello" {
		t.Errorf("request = %+v", got)
	}
}

func TestOpenAIEngine_EmbedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	e := NewOpenAIWithBaseURL("k", srv.URL)
	if _, err := e.Embed(context.Background(), "m", "hello"); err == nil {
		t.Fatal("expected error for empty embeddings")
	}
}

func TestOpenAIEngine_IsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	if !NewOpenAIWithBaseURL("k", srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}

	srv.Close()
	if NewOpenAIWithBaseURL("k", srv.URL).IsRunning(context.Background()) {
		t.Error("IsRunning() = true after close, want false")
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(Options{Provider: ProviderOpenAI, APIKey: "k"})
	if err != nil {
		t.Fatalf("New(openai): %v", err)
	}
	if _, ok := e.(*OpenAIEngine); !ok {
		t.Errorf("New(openai) returned %T", e)
	}

	e, err = New(Options{Provider: ProviderOllama, OllamaBaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("New(ollama): %v", err)
	}
	if _, ok := e.(*OllamaEngine); !ok {
		t.Errorf("New(ollama) returned %T", e)
	}

	if _, err := New(Options{Provider: ProviderOpenAI}); err == nil {
		t.Error("New(openai) without key: expected error")
	}
	if _, err := New(Options{Provider: "bard"}); err == nil {
		t.Error("New(unknown): expected error")
	}
}

func TestNew_OpenAITimeout(t *testing.T) {
	e, err := New(Options{Provider: ProviderOpenAI, APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := e.(*OpenAIEngine).httpClient.Timeout; got != defaultOpenAITimeout {
		t.Errorf("default Timeout = %v, want %v", got, defaultOpenAITimeout)
	}

	e, err = New(Options{Provider: ProviderOpenAI, APIKey: "k", BaseURL: "http://localhost:1", Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := e.(*OpenAIEngine).httpClient.Timeout; got != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", got)
	}
}
