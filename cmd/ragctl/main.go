// Package main provides the ragctl CLI for operating the document store
// without the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/agent"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/chunker"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/config"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/docstore"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/embedding"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/index"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/registry"
	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/retrieval"
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Document Q&A administration tool",
	Long: `CLI for managing the document question answering store directly.

Environment variables:
  OPENAI_API_KEY OpenAI API key (required)
  QDRANT_HOST    Qdrant hostname (default: localhost)
  QDRANT_PORT    Qdrant gRPC port (default: 6334)
  REGISTRY_PATH  SQLite registry file (default: documents.db)`,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>",
	Short: "Upload and index a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and its index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var askCmd = &cobra.Command{
	Use:   "ask <document-id> <question>",
	Short: "Ask a question about a document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(ingestCmd, listCmd, deleteCmd, askCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired core for one CLI invocation.
type app struct {
	cfg          *config.Config
	registry     *registry.Registry
	store        *index.Store
	manager      *docstore.Manager
	orchestrator *agent.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	store, err := index.NewStore(cfg.QdrantHost, cfg.QdrantPort, cfg.EmbeddingDimension)
	if err != nil {
		reg.Close()
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	client, err := embedding.NewClient(cfg.OpenAIAPIKey)
	if err != nil {
		reg.Close()
		store.Close()
		return nil, err
	}
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, cfg.EmbeddingDimension, cfg.UpstreamTimeout, 0)

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		reg.Close()
		store.Close()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	manager := docstore.NewManager(reg, docstore.NewQdrantIndexes(store), embedder, ch, logger)
	tool := retrieval.NewTool(manager, embedder)
	model := agent.NewOpenAIModel(client.Client(), cfg.LLMModel, cfg.UpstreamTimeout)
	orchestrator := agent.NewOrchestrator(model, tool, cfg.RetrieverK, cfg.MaxIterations, logger)

	return &app{
		cfg:          cfg,
		registry:     reg,
		store:        store,
		manager:      manager,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) close() {
	a.store.Close()
	a.registry.Close()
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return fmt.Errorf("only .pdf files are accepted, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.manager.Ingest(context.Background(), data, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("Ingested %s\n", rec.Filename)
	fmt.Printf("  Document ID: %s\n", rec.ID)
	fmt.Printf("  Pages:       %d\n", rec.PageCount)
	fmt.Printf("  Chunks:      %d\n", rec.ChunkCount)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.manager.List(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No documents registered.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %-10s  %4d pages  %5d chunks  %s\n",
			rec.ID, rec.Status, rec.PageCount, rec.ChunkCount, rec.Filename)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	id := args[0]
	if err := a.manager.Delete(context.Background(), id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	id := args[0]
	question := strings.Join(args[1:], " ")

	rec, err := a.manager.Get(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Queryable() {
		return fmt.Errorf("document %s is %s, not queryable", rec.ID, rec.Status)
	}

	result, err := a.orchestrator.Answer(ctx, rec.ID, rec.Filename, question)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(result.Answer)
	fmt.Printf("\n(%d retrieval calls)\n", result.ToolCalls)
	return nil
}
