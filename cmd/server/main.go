// Package main provides the REST server entry point for the document
// question answering service.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/agent"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/api"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/chunker"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/config"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/docstore"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/embedding"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/index"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/registry"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/retrieval"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		logger.Error("opening document registry failed", "path", cfg.RegistryPath, "error", err)
		os.Exit(1)
	}
	defer reg.Close()

	// A previous process may have crashed mid-ingest; fail those records
	// so they become listable diagnostics and deletable.
	if n, err := reg.RecoverStale(context.Background()); err != nil {
		logger.Error("recovering stale ingests failed", "error", err)
		os.Exit(1)
	} else if n > 0 {
		logger.Warn("recovered stale ingests from a previous run", "count", n)
	}

	store, err := index.NewStore(cfg.QdrantHost, cfg.QdrantPort, cfg.EmbeddingDimension)
	if err != nil {
		logger.Error("connecting to qdrant failed", "host", cfg.QdrantHost, "port", cfg.QdrantPort, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		logger.Error("creating openai client failed", "error", err)
		os.Exit(1)
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.UpstreamTimeout, 0)

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		logger.Error("invalid chunking parameters", "error", err)
		os.Exit(1)
	}

	manager := docstore.NewManager(reg, docstore.NewQdrantIndexes(store), embedder, ch, logger)
	tool := retrieval.NewTool(manager, embedder)
	model := agent.NewOpenAIModel(client.Client(), cfg.LLMModel, cfg.UpstreamTimeout)
	orchestrator := agent.NewOrchestrator(model, tool, cfg.RetrieverK, cfg.MaxIterations, logger)

	handler := api.NewHandler(manager, orchestrator, store, cfg.MaxUploadBytes, logger)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Queries block on LLM round trips; the write timeout must cover a
		// full agent loop.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
