package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intellecta/rag/internal/auth"
	"github.com/intellecta/rag/internal/config"
	"github.com/intellecta/rag/internal/embedder"
	"github.com/intellecta/rag/internal/engine"
	"github.com/intellecta/rag/internal/ingestion"
	"github.com/intellecta/rag/internal/llm"
	"github.com/intellecta/rag/internal/metrics"
	"github.com/intellecta/rag/internal/repository"
	"github.com/intellecta/rag/internal/repository/postgres"
	"github.com/intellecta/rag/internal/reranker"
	"github.com/intellecta/rag/internal/retriever"
	"github.com/intellecta/rag/internal/security"
	"github.com/intellecta/rag/internal/server"
	"github.com/intellecta/rag/internal/tokenizer"
	"github.com/intellecta/rag/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting RAG service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize PostgreSQL. The service runs without it; history then lives
	// only in the in-memory window.
	var documentRepo repository.DocumentRepository
	var queryLogRepo repository.QueryLogRepository
	var auditRepo repository.AuditRepository

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Warn("PostgreSQL unavailable, persistence disabled", "error", err)
	} else {
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		documentRepo = postgres.NewDocumentRepo(db)
		queryLogRepo = postgres.NewQueryLogRepo(db)
		auditRepo = postgres.NewAuditRepo(db)
		slog.Info("connected to PostgreSQL")
	}

	// Initialize Qdrant vector store
	store, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer store.Close()

	dimension := cfg.EmbeddingDimension
	if dimension == 0 {
		dimension = embedder.GetModelConfig(cfg.OllamaEmbeddingModel).Dimension
	}
	qdrantOK := true
	if err := store.EnsureCollection(ctx, dimension); err != nil {
		qdrantOK = false
		slog.Warn("failed to ensure Qdrant collection", "error", err)
	} else {
		slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)
	}

	// Initialize Ollama embedder
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:          cfg.OllamaURL,
		Model:            cfg.OllamaEmbeddingModel,
		Dimension:        dimension,
		BatchConcurrency: cfg.EmbedConcurrency,
	})
	slog.Info("initialized Ollama embedder", "model", cfg.OllamaEmbeddingModel)

	// Initialize Ollama LLM
	llmClient := llm.NewOllamaClient(
		llm.WithBaseURL(cfg.OllamaURL),
		llm.WithModel(cfg.OllamaLLMModel),
	)
	slog.Info("initialized Ollama LLM", "model", cfg.OllamaLLMModel)

	// Security classifier
	checker := security.NewChecker()

	// Chunking and ingestion
	tok := tokenizer.New()
	chunker := ingestion.NewChunker(ingestion.ChunkerConfig{
		TargetTokens:  cfg.ChunkTargetTokens,
		OverlapTokens: cfg.ChunkOverlapTokens,
		MinTokens:     cfg.ChunkMinTokens,
	}, tok)
	pipeline := ingestion.NewPipeline(chunker, checker, embed, store, slog.Default())
	slog.Info("initialized ingestion pipeline", "tokenizer", tok.Name())

	// Retrieval and ranking
	rerank := reranker.NewEmbeddingReranker(embed, slog.Default())
	searcher := retriever.NewSearcher(embed, store, rerank, slog.Default())

	// Query orchestration
	eng := engine.New(searcher, checker, llmClient, slog.Default())

	// Auth middleware. Empty secret disables token validation.
	var authMiddleware *auth.Middleware
	if cfg.JWTSecret != "" {
		jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
		jwtConfig.Expiry = cfg.JWTExpiry
		authMiddleware = auth.NewMiddleware(auth.NewJWTManager(jwtConfig))
	} else {
		authMiddleware = auth.NewMiddleware(nil)
		slog.Warn("JWT secret not set, request-declared clearance is trusted")
	}

	handlers := server.NewHandlers(server.HandlersConfig{
		Engine:    eng,
		Pipeline:  pipeline,
		Store:     store,
		Documents: documentRepo,
		QueryLogs: queryLogRepo,
		Audit:     auditRepo,
		History:   metrics.NewHistory(cfg.HistoryTTL),
		Checker:   checker,
		Config:    cfg,
		Logger:    slog.Default(),
	})

	httpServer := server.New(server.Config{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Auth:           authMiddleware,
	}, handlers)

	// Warm the generation model in the background so the first query does
	// not pay the model load cost.
	go func() {
		warmupCtx, warmupCancel := context.WithTimeout(ctx, 2*time.Minute)
		defer warmupCancel()
		ollamaOK := true
		if err := eng.Warmup(warmupCtx); err != nil {
			ollamaOK = false
			slog.Warn("LLM warmup failed", "model", cfg.OllamaLLMModel, "error", err)
		} else {
			slog.Info("LLM warmed up", "model", cfg.OllamaLLMModel)
		}
		handlers.SetConnectivity(qdrantOK, ollamaOK, ollamaOK)
	}()

	// Start server
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ vectorstore.VectorStore = (*vectorstore.QdrantStore)(nil)
	_ embedder.Embedder       = (*embedder.OllamaEmbedder)(nil)
	_ llm.LLM                 = (*llm.OllamaClient)(nil)
	_ engine.Retriever        = (*retriever.Searcher)(nil)
)
