package retrieval

import "time"

// VectorStore stores document chunks with their embeddings and answers
// nearest-neighbour queries over them.
type VectorStore interface {
	// Insert adds records to the store.
	Insert(records []Record) error

	// Search returns the topK records most similar to vector, best first.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of stored records.
	Count() (int, error)
}

// Record is one chunk of a source document.
type Record struct {
	ID        string
	SourceID  string
	Page      int
	Ordinal   int
	TextChunk string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
