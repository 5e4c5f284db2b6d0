package retrieval

import (
	"context"
	"fmt"
)

// Chunk is a retrieved document fragment with its similarity score.
type Chunk struct {
	ID       string
	SourceID string
	Page     int
	Text     string
	Score    float32
}

// Retriever combines embedding and vector search to find relevant chunks.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K most similar chunks,
// best first. An empty index yields no chunks and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	return scoredToChunks(scored), nil
}

func scoredToChunks(scored []ScoredRecord) []Chunk {
	chunks := make([]Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = Chunk{
			ID:       s.ID,
			SourceID: s.SourceID,
			Page:     s.Page,
			Text:     s.TextChunk,
			Score:    s.Score,
		}
	}
	return chunks
}
