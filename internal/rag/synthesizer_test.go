package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/retrieval"
)

type mockRetriever struct {
	chunks  []retrieval.Chunk
	err     error
	gotTopK int
	gotQ    string
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, topK int) ([]retrieval.Chunk, error) {
	m.gotQ = query
	m.gotTopK = topK
	return m.chunks, m.err
}

type mockChatter struct {
	reply engine.Reply
	err   error
	got   engine.ChatRequest
	calls int
}

func (m *mockChatter) Chat(_ context.Context, req engine.ChatRequest) (engine.Reply, error) {
	m.calls++
	m.got = req
	return m.reply, m.err
}

func TestAnswer_PromptCarriesContextAndInstruction(t *testing.T) {
	r := &mockRetriever{chunks: []retrieval.Chunk{
		{ID: "a", Text: "Sound needs a medium to travel."},
		{ID: "b", Text: "It cannot travel through vacuum."},
	}}
	chat := &mockChatter{reply: engine.Reply{Content: "  Sound cannot travel in vacuum.\n"}}
	s := New(r, chat, Config{Model: "gpt-4o-mini"})

	answer, err := s.Answer(context.Background(), "Can sound travel in space?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "Sound cannot travel in vacuum." {
		t.Errorf("answer = %q", answer)
	}
	if r.gotTopK != DefaultTopK || r.gotQ != "Can sound travel in space?" {
		t.Errorf("retriever got query %q topK %d", r.gotQ, r.gotTopK)
	}

	msgs := chat.got.Messages
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Use three sentences maximum and keep the answer concise.") {
		t.Errorf("system prompt lacks the three-sentence instruction: %q", msgs[0].Content)
	}
	wantUser := "context: Sound needs a medium to travel.\n\nIt cannot travel through vacuum.\n\nquestion: Can sound travel in space?"
	if msgs[1].Content != wantUser {
		t.Errorf("user message = %q, want %q", msgs[1].Content, wantUser)
	}
	if len(chat.got.Tools) != 0 {
		t.Error("synthesizer must not declare tools")
	}
	if chat.got.Model != "gpt-4o-mini" || chat.got.Temperature == nil || *chat.got.Temperature != 0 {
		t.Errorf("model = %q temperature = %v", chat.got.Model, chat.got.Temperature)
	}
}

func TestAnswer_EmptyContextStillAsks(t *testing.T) {
	chat := &mockChatter{reply: engine.Reply{Content: "I don't know."}}
	s := New(&mockRetriever{}, chat, Config{Model: "m", TopK: 2})

	answer, err := s.Answer(context.Background(), "Who won the match?")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer != "I don't know." {
		t.Errorf("answer = %q", answer)
	}
	if got := chat.got.Messages[1].Content; got != "context: \n\nquestion: Who won the match?" {
		t.Errorf("user message = %q", got)
	}
}

func TestAnswer_RetrieverError(t *testing.T) {
	chat := &mockChatter{}
	s := New(&mockRetriever{err: errors.New("index unavailable")}, chat, Config{Model: "m"})

	if _, err := s.Answer(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if chat.calls != 0 {
		t.Error("model called despite retrieval failure")
	}
}

func TestAnswer_ModelError(t *testing.T) {
	chat := &mockChatter{err: &engine.StatusError{Code: 500, Body: "boom"}}
	s := New(&mockRetriever{}, chat, Config{Model: "m"})

	_, err := s.Answer(context.Background(), "q")
	var se *engine.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want wrapped *StatusError", err)
	}
}
