package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/ragroute/internal/retrieval"
	"github.com/kalambet/ragroute/internal/storage"
)

// ManifestStore records which document builds are present in the index.
type ManifestStore interface {
	GetManifest(fingerprint string) (storage.Manifest, error)
	ReplaceIndex(m storage.Manifest, insert func(tx *sql.Tx) error) error
}

// BatchEmbedder generates embeddings for many texts with one model.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// ChunkWriter is the write side of the vector store.
type ChunkWriter interface {
	InsertTx(tx *sql.Tx, records []retrieval.Record) error
}

// BuildResult describes the outcome of Indexer.Build.
type BuildResult struct {
	Fingerprint string
	Chunks      int
	Skipped     bool
}

// Indexer turns the source PDF into embedded chunks in the vector store.
type Indexer struct {
	mu        sync.Mutex
	manifests ManifestStore
	embedder  BatchEmbedder
	chunks    ChunkWriter
	splitter  *Splitter
	load      func(path string) ([]Page, error)
	logger    *slog.Logger
}

// NewIndexer creates an Indexer with the given dependencies.
func NewIndexer(manifests ManifestStore, embedder BatchEmbedder, chunks ChunkWriter, splitter *Splitter) *Indexer {
	return &Indexer{
		manifests: manifests,
		embedder:  embedder,
		chunks:    chunks,
		splitter:  splitter,
		load:      LoadPDF,
		logger:    slog.Default(),
	}
}

// Build indexes the PDF at path. When the index already holds a build of the
// same file with the same parameters, Build does nothing unless force is set.
// Concurrent calls run one at a time.
func (ix *Indexer) Build(ctx context.Context, path string, force bool) (BuildResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	fp, err := ix.fingerprint(path)
	if err != nil {
		return BuildResult{}, err
	}

	if !force {
		m, err := ix.manifests.GetManifest(fp)
		switch {
		case err == nil:
			ix.logger.Debug("index up to date", "path", path, "chunks", m.ChunkCount)
			return BuildResult{Fingerprint: fp, Chunks: m.ChunkCount, Skipped: true}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return BuildResult{}, fmt.Errorf("reading index manifest: %w", err)
		}
	}

	start := time.Now()
	pages, err := ix.load(path)
	if err != nil {
		return BuildResult{}, err
	}
	chunks := ix.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		return BuildResult{}, fmt.Errorf("no text extracted from %s", path)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return BuildResult{}, fmt.Errorf("embedding chunks: %w", err)
	}

	source := filepath.Base(path)
	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:        uuid.New().String(),
			SourceID:  source,
			Page:      c.Page,
			Ordinal:   c.Ordinal,
			TextChunk: c.Text,
			Embedding: vecs[i],
			CreatedAt: now,
		}
	}
	manifest := storage.Manifest{
		Fingerprint:  fp,
		Path:         path,
		ChunkSize:    ix.splitter.ChunkSize,
		ChunkOverlap: ix.splitter.ChunkOverlap,
		EmbedModel:   ix.embedder.Model(),
		ChunkCount:   len(records),
		CreatedAt:    now,
	}
	err = ix.manifests.ReplaceIndex(manifest, func(tx *sql.Tx) error {
		if err := ix.chunks.InsertTx(tx, records); err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return BuildResult{}, fmt.Errorf("replacing index: %w", err)
	}

	ix.logger.Info("index built",
		"path", path,
		"pages", len(pages),
		"chunks", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return BuildResult{Fingerprint: fp, Chunks: len(records)}, nil
}

// fingerprint identifies a build: the document bytes plus every parameter
// that changes the stored chunks or their vectors.
func (ix *Indexer) fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%d|%d|%s", ix.splitter.ChunkSize, ix.splitter.ChunkOverlap, ix.embedder.Model())
	return hex.EncodeToString(h.Sum(nil)), nil
}
