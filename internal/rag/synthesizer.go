package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/retrieval"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

// ChunkRetriever finds the chunks most relevant to a query.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// Config selects the chat model and retrieval depth.
type Config struct {
	Model       string
	Temperature float64
	TopK        int
}

// Synthesizer answers questions about the indexed document.
type Synthesizer struct {
	retriever ChunkRetriever
	chat      engine.Chatter
	cfg       Config
	logger    *slog.Logger
}

// New creates a Synthesizer. A TopK <= 0 falls back to DefaultTopK.
func New(r ChunkRetriever, chat engine.Chatter, cfg Config) *Synthesizer {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	return &Synthesizer{retriever: r, chat: chat, cfg: cfg, logger: slog.Default()}
}

// Answer retrieves context for question and returns the model's concise
// answer as plain text. Nothing about the retrieval is added to the text.
func (s *Synthesizer) Answer(ctx context.Context, question string) (string, error) {
	chunks, err := s.retriever.Retrieve(ctx, question, s.cfg.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	s.logger.Debug("retrieved context", "chunks", len(chunks))

	reply, err := s.chat.Chat(ctx, engine.ChatRequest{
		Model:       s.cfg.Model,
		Messages:    BuildPrompt(question, chunks),
		Temperature: engine.Float(s.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return strings.TrimSpace(reply.Content), nil
}
