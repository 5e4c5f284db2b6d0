package retrieval

import (
	"context"
	"errors"
	"testing"
)

// mockVectorStore implements VectorStore for testing.
type mockVectorStore struct {
	searchFn func(vector []float32, topK int) ([]ScoredRecord, error)
}

func (m *mockVectorStore) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	return m.searchFn(vector, topK)
}
func (m *mockVectorStore) Insert(records []Record) error { return nil }
func (m *mockVectorStore) Count() (int, error)           { return 0, nil }

func TestRetrieve_ReturnsChunks(t *testing.T) {
	embedCalls := 0
	emb := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			embedCalls++
			return makeVector(16), nil
		},
	}

	var gotTopK int
	store := &mockVectorStore{
		searchFn: func(_ []float32, topK int) ([]ScoredRecord, error) {
			gotTopK = topK
			return []ScoredRecord{
				{Record: Record{ID: "r1", SourceID: "iesc111.pdf", Page: 3, TextChunk: "Sound needs a medium"}, Score: 0.9},
				{Record: Record{ID: "r2", SourceID: "iesc111.pdf", Page: 4, TextChunk: "Echo is reflected sound"}, Score: 0.7},
			}, nil
		},
	}

	r := NewRetriever(NewEmbedder(emb, "text-embedding-3-small"), store)
	chunks, err := r.Retrieve(context.Background(), "what is an echo?", 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if embedCalls != 1 {
		t.Errorf("embed called %d times, want 1", embedCalls)
	}
	if gotTopK != 4 {
		t.Errorf("topK passed to store = %d, want 4", gotTopK)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].ID != "r1" || chunks[0].Text != "Sound needs a medium" || chunks[0].Page != 3 {
		t.Errorf("chunks[0] = %+v", chunks[0])
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	emb := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return makeVector(16), nil
		},
	}
	store := &mockVectorStore{
		searchFn: func(_ []float32, _ int) ([]ScoredRecord, error) {
			return nil, nil
		},
	}

	r := NewRetriever(NewEmbedder(emb, "m"), store)
	chunks, err := r.Retrieve(context.Background(), "query", 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(chunks))
	}
}

func TestRetrieve_EmbedFails(t *testing.T) {
	emb := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return nil, errors.New("embed error")
		},
	}
	store := &mockVectorStore{
		searchFn: func(_ []float32, _ int) ([]ScoredRecord, error) {
			t.Fatal("search should not be called when embed fails")
			return nil, nil
		},
	}

	r := NewRetriever(NewEmbedder(emb, "m"), store)
	if _, err := r.Retrieve(context.Background(), "query", 4); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestRetrieve_SearchFails(t *testing.T) {
	emb := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, _ string) ([]float32, error) {
			return makeVector(16), nil
		},
	}
	store := &mockVectorStore{
		searchFn: func(_ []float32, _ int) ([]ScoredRecord, error) {
			return nil, errors.New("disk I/O error")
		},
	}

	r := NewRetriever(NewEmbedder(emb, "m"), store)
	if _, err := r.Retrieve(context.Background(), "query", 4); err == nil {
		t.Fatal("expected error when search fails")
	}
}

func TestRetrieve_AgainstSQLite(t *testing.T) {
	vectors := map[string][]float32{
		"frequency": {1, 0, 0},
		"amplitude": {0, 1, 0},
		"echo":      {0, 0, 1},
	}
	emb := &mockEmbedder{
		embedFn: func(_ context.Context, _ string, text string) ([]float32, error) {
			if v, ok := vectors[text]; ok {
				return v, nil
			}
			return nil, errors.New("unknown text")
		},
	}
	store := NewSQLiteStore(openTestDB(t))
	ordinal := 0
	for text, vec := range vectors {
		if err := store.Insert([]Record{{ID: text, SourceID: "doc", Ordinal: ordinal, TextChunk: text, Embedding: vec}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		ordinal++
	}

	r := NewRetriever(NewEmbedder(emb, "m"), store)
	chunks, err := r.Retrieve(context.Background(), "echo", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != "echo" {
		t.Errorf("got %+v, want the echo chunk", chunks)
	}
}
