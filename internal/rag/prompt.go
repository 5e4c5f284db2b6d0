package rag

import (
	"strings"

	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/retrieval"
)

// SystemPrompt instructs the model to answer only from the retrieved context.
const SystemPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise."

// BuildPrompt returns the messages sent to the chat model: the fixed system
// instruction and a user message carrying the context and the question.
func BuildPrompt(question string, chunks []retrieval.Chunk) []engine.Message {
	return []engine.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: "context: " + joinContext(chunks) + "\n\nquestion: " + question},
	}
}

// joinContext concatenates chunk texts in retrieval order, blank-line separated.
func joinContext(chunks []retrieval.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
