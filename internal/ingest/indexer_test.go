package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kalambet/ragroute/internal/retrieval"
	"github.com/kalambet/ragroute/internal/storage"
)

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 1}
	}
	return vecs, nil
}

func (m *mockEmbedder) Model() string { return "mock-embed" }

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeDoc(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "iesc111.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing document: %v", err)
	}
	return path
}

type testIndexer struct {
	*Indexer
	store    *storage.Store
	vectors  *retrieval.SQLiteStore
	embedder *mockEmbedder
	loads    int
	pages    []Page
}

func newTestIndexer(t *testing.T) *testIndexer {
	t.Helper()
	store := openTestStore(t)
	ti := &testIndexer{
		store:    store,
		vectors:  retrieval.NewSQLiteStore(store.DB()),
		embedder: &mockEmbedder{},
		pages: []Page{
			{Number: 1, Text: "Sound is a form of energy which produces a sensation of hearing in our ears."},
			{Number: 2, Text: "The reflection of sound is called an echo."},
		},
	}
	ti.Indexer = NewIndexer(store, ti.embedder, ti.vectors, NewSplitter(200, 40))
	ti.load = func(string) ([]Page, error) {
		ti.loads++
		return ti.pages, nil
	}
	return ti
}

func TestBuild_IndexesChunks(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeDoc(t, t.TempDir(), "v1")

	res, err := ix.Build(context.Background(), path, false)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Skipped {
		t.Error("first build reported Skipped")
	}
	if res.Chunks != 2 {
		t.Errorf("Chunks = %d, want 2", res.Chunks)
	}

	count, err := ix.vectors.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("stored chunks = %d, want 2", count)
	}

	m, err := ix.store.GetManifest(res.Fingerprint)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if m.ChunkCount != 2 || m.EmbedModel != "mock-embed" || m.ChunkSize != 200 || m.ChunkOverlap != 40 {
		t.Errorf("manifest = %+v", m)
	}
}

func TestBuild_SkipsWhenUnchanged(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeDoc(t, t.TempDir(), "v1")

	first, err := ix.Build(context.Background(), path, false)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := ix.Build(context.Background(), path, false)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if !second.Skipped {
		t.Error("second build was not skipped")
	}
	if second.Fingerprint != first.Fingerprint || second.Chunks != first.Chunks {
		t.Errorf("second = %+v, first = %+v", second, first)
	}
	if ix.loads != 1 || ix.embedder.calls != 1 {
		t.Errorf("loads = %d, embed calls = %d, want 1 and 1", ix.loads, ix.embedder.calls)
	}
}

func TestBuild_RebuildsWhenDocumentChanges(t *testing.T) {
	ix := newTestIndexer(t)
	dir := t.TempDir()

	if _, err := ix.Build(context.Background(), writeDoc(t, dir, "v1"), false); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	ix.pages = []Page{{Number: 1, Text: "Only one page now."}}
	res, err := ix.Build(context.Background(), writeDoc(t, dir, "v2"), false)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if res.Skipped {
		t.Fatal("changed document was not rebuilt")
	}

	count, _ := ix.vectors.Count()
	if count != 1 {
		t.Errorf("stored chunks = %d, want 1 (stale chunks cleared)", count)
	}
}

func TestBuild_ForceRebuilds(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeDoc(t, t.TempDir(), "v1")

	if _, err := ix.Build(context.Background(), path, false); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	res, err := ix.Build(context.Background(), path, true)
	if err != nil {
		t.Fatalf("forced Build: %v", err)
	}
	if res.Skipped {
		t.Error("forced build was skipped")
	}
	count, _ := ix.vectors.Count()
	if count != 2 {
		t.Errorf("stored chunks = %d, want 2 (no duplicates)", count)
	}
}

func TestBuild_EmbedFailureKeepsPreviousIndex(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeDoc(t, t.TempDir(), "v1")

	if _, err := ix.Build(context.Background(), path, false); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	ix.embedder.err = errors.New("rate limited")
	if _, err := ix.Build(context.Background(), path, true); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	count, _ := ix.vectors.Count()
	if count != 2 {
		t.Errorf("stored chunks = %d, want previous 2", count)
	}
}

func TestBuild_NoText(t *testing.T) {
	ix := newTestIndexer(t)
	ix.pages = nil
	path := writeDoc(t, t.TempDir(), "empty")

	if _, err := ix.Build(context.Background(), path, false); err == nil {
		t.Error("expected error for a document without text")
	}
}

func TestBuild_MissingDocument(t *testing.T) {
	ix := newTestIndexer(t)
	if _, err := ix.Build(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), false); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestBuild_ConcurrentForcedBuildsDoNotDuplicate(t *testing.T) {
	ix := newTestIndexer(t)
	path := writeDoc(t, t.TempDir(), "v1")

	if _, err := ix.Build(context.Background(), path, false); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	stop := make(chan struct{})
	readerDone := make(chan int)
	go func() {
		empty := 0
		for {
			select {
			case <-stop:
				readerDone <- empty
				return
			default:
			}
			if n, err := ix.vectors.Count(); err == nil && n == 0 {
				empty++
			}
		}
	}()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ix.Build(context.Background(), path, true); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(stop)
	empty := <-readerDone
	close(errs)
	for err := range errs {
		t.Errorf("forced Build: %v", err)
	}

	count, err := ix.vectors.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("stored chunks = %d, want 2", count)
	}
	if empty != 0 {
		t.Errorf("reader saw an empty index %d times during rebuilds", empty)
	}
}
