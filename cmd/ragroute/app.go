package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kalambet/ragroute/internal/api"
	"github.com/kalambet/ragroute/internal/config"
	"github.com/kalambet/ragroute/internal/engine"
	"github.com/kalambet/ragroute/internal/ingest"
	"github.com/kalambet/ragroute/internal/rag"
	"github.com/kalambet/ragroute/internal/retrieval"
	"github.com/kalambet/ragroute/internal/router"
	"github.com/kalambet/ragroute/internal/session"
	"github.com/kalambet/ragroute/internal/storage"
	"github.com/kalambet/ragroute/internal/websearch"
)

// app holds the wired components shared by serve, mcp, index and ask --local.
type app struct {
	cfg       config.Config
	engine    engine.Engine
	store     *storage.Store
	vectors   *retrieval.SQLiteStore
	retriever *retrieval.Retriever
	indexer   *ingest.Indexer
	search    *websearch.Client
	router    *router.Router

	closers []func() error
}

// openApp connects every backend named by cfg. Progress for model pulls is
// written to w.
func openApp(ctx context.Context, cfg config.Config, w io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	eng, err := engine.New(engine.Options{
		Provider:      cfg.LLM.Provider,
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		Timeout:       cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model backend: %w", err)
	}
	if mm, ok := eng.(engine.ModelManager); ok {
		if err := engine.EnsureReady(ctx, mm, cfg.LLM.ChatModel, cfg.LLM.EmbedModel, w); err != nil {
			return nil, err
		}
	}
	a.engine = eng

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	embedder := retrieval.NewEmbedder(eng, cfg.LLM.EmbedModel)
	a.vectors = retrieval.NewSQLiteStore(store.DB())
	a.retriever = retrieval.NewRetriever(embedder, a.vectors)
	a.indexer = ingest.NewIndexer(store, embedder, a.vectors, ingest.NewSplitter(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap))

	toolbox := router.Toolbox{
		Answerer: rag.New(a.retriever, eng, rag.Config{
			Model:       cfg.LLM.ChatModel,
			Temperature: cfg.LLM.Temperature,
			TopK:        cfg.Retrieval.TopK,
		}),
	}
	if cfg.Search.APIKey != "" {
		a.search, err = websearch.New(websearch.Options{
			APIKey:     cfg.Search.APIKey,
			BaseURL:    cfg.Search.BaseURL,
			MaxResults: cfg.Search.MaxResults,
			Depth:      cfg.Search.Depth,
			Timeout:    cfg.Search.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		toolbox.Search = a.search
	} else {
		slog.Warn("TAVILY_API_KEY not set; web search questions will fail")
	}

	sessions, closeSessions, err := session.Open(ctx, cfg.Session.Backend, store, cfg.Session.RedisURL, session.Options{
		TTL:         cfg.Session.TTL,
		MaxMessages: cfg.Session.MaxMessages,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	a.closers = append(a.closers, closeSessions)

	a.router, err = router.New(
		sessions,
		router.NewModelClassifier(eng, cfg.LLM.ChatModel, cfg.LLM.Temperature),
		toolbox,
		router.Options{LoopBack: cfg.Router.LoopBack},
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// ensureIndex builds the index for the configured document unless an
// identical build is already stored.
func (a *app) ensureIndex(ctx context.Context, force bool) (ingest.BuildResult, error) {
	return a.indexer.Build(ctx, a.cfg.Document.Path, force)
}

// Reindex forces a rebuild; it backs POST /v1/index.
func (a *app) Reindex(ctx context.Context) (ingest.BuildResult, error) {
	return a.ensureIndex(ctx, true)
}

func (a *app) mcpDeps() api.MCPDeps {
	deps := api.MCPDeps{Router: a.router, Retriever: a.retriever}
	if a.search != nil {
		deps.Searcher = a.search
	}
	return deps
}
