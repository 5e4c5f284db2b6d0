package retrieval

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/kalambet/ragroute/internal/storage"
)

// openTestDB returns an in-memory database with the migrated schema.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.DB()
}

func makeTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func TestInsertAndSearch(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	vec := makeTestVector(64, 0.1)
	err := s.Insert([]Record{{
		ID:        "r1",
		SourceID:  "iesc111.pdf",
		Page:      2,
		Ordinal:   0,
		TextChunk: "Sound travels as a longitudinal wave",
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score < 0.99 {
		t.Errorf("score = %f, want > 0.99", results[0].Score)
	}
	if results[0].ID != "r1" || results[0].Page != 2 {
		t.Errorf("result = %+v", results[0].Record)
	}
}

func TestSearch_TopK(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	var records []Record
	for i := 0; i < 10; i++ {
		records = append(records, Record{
			ID:        fmt.Sprintf("r%d", i),
			SourceID:  "src",
			Ordinal:   i,
			TextChunk: "text",
			Embedding: makeTestVector(64, float32(i)*0.01),
		})
	}
	if err := s.Insert(records); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search(makeTestVector(64, 0.05), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted: %f before %f", results[i-1].Score, results[i].Score)
		}
	}
}

func TestSearch_BestMatchFirst(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	if err := s.Insert([]Record{
		{ID: "x", SourceID: "s", Ordinal: 0, TextChunk: "x axis", Embedding: []float32{1, 0, 0}},
		{ID: "y", SourceID: "s", Ordinal: 1, TextChunk: "y axis", Embedding: []float32{0, 1, 0}},
		{ID: "xy", SourceID: "s", Ordinal: 2, TextChunk: "diagonal", Embedding: []float32{1, 1, 0}},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := s.Search([]float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ID != "x" || results[1].ID != "xy" {
		t.Errorf("got %+v, want [x xy]", results)
	}
}

func TestSearch_EmptyTable(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	results, err := s.Search(makeTestVector(64, 0.1), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestSearch_TopKZero(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	results, err := s.Search(makeTestVector(64, 0.1), 0)
	if err != nil {
		t.Fatalf("Search with topK=0: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for topK=0, got %d", len(results))
	}
}

func TestCount(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("empty count = %d, want 0", count)
	}

	if err := s.Insert([]Record{
		{ID: "r1", SourceID: "s", TextChunk: "t", Embedding: makeTestVector(8, 0.1)},
		{ID: "r2", SourceID: "s", Ordinal: 1, TextChunk: "t", Embedding: makeTestVector(8, 0.2)},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	count, err = s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestInsertTx_RollbackDiscardsRecords(t *testing.T) {
	s := NewSQLiteStore(openTestDB(t))

	tx, err := s.db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.InsertTx(tx, []Record{
		{ID: "r1", SourceID: "s", TextChunk: "t", Embedding: makeTestVector(8, 0.1)},
	}); err != nil {
		t.Fatalf("InsertTx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count after rollback = %d, want 0", count)
	}
}

func TestDecodeFloat32s_Corrupt(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for length not a multiple of 4")
	}
	got, err := decodeFloat32sInto(nil, encodeFloat32s([]float32{1.5, -2}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0] != 1.5 || got[1] != -2 {
		t.Errorf("round trip = %v", got)
	}
}
