package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkoval/knowbase/internal/config"
	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
	"github.com/dkoval/knowbase/internal/core/usecase"
	"github.com/dkoval/knowbase/internal/infrastructure/chunking"
	"github.com/dkoval/knowbase/internal/infrastructure/graph/neo4j"
	"github.com/dkoval/knowbase/internal/infrastructure/llm/ollama"
	"github.com/dkoval/knowbase/internal/infrastructure/queue/nats"
	"github.com/dkoval/knowbase/internal/infrastructure/repository/postgres"
	"github.com/dkoval/knowbase/internal/infrastructure/resilience"
	"github.com/dkoval/knowbase/internal/infrastructure/storage/localfs"
	"github.com/dkoval/knowbase/internal/infrastructure/vector/qdrant"
	"github.com/dkoval/knowbase/internal/observability/logging"
)

// App holds every wired dependency. The graph store is nil when no Neo4j URI
// is configured; the usecases degrade accordingly.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue         ports.MessageQueue
	Repo          ports.DocumentRepository
	Conversations *postgres.ConversationRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	AnswerUC  *usecase.AnswerUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	keyword := postgres.NewKeywordSearch(db)
	conversations := postgres.NewConversationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutorWithLogger(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	generator := ollama.NewGenerator(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)
	extractor := ollama.NewExtractor(ollamaClient)

	vectorIdx := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	var graph ports.GraphStore
	if cfg.GraphEnabled() {
		neo4jClient, err := neo4j.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			queue.Close()
			_ = db.Close()
			return nil, fmt.Errorf("init neo4j: %w", err)
		}
		graph = neo4jClient
	} else {
		logger.Info("graph store disabled, no neo4j uri configured")
	}

	orchestrator := usecase.NewOrchestrator(vectorIdx, keyword, graph, usecase.OrchestratorConfig{
		FusionK: cfg.RAGFusionRRFK,
		Weights: map[domain.Source]float64{
			domain.SourceVector:  cfg.RAGVectorWeight,
			domain.SourceKeyword: cfg.RAGKeywordWeight,
			domain.SourceGraph:   cfg.RAGGraphWeight,
		},
		SourceTimeout:  time.Duration(cfg.RAGSourceTimeoutSecs) * time.Second,
		CandidateLimit: cfg.RAGCandidateLimit,
		DefaultTopK:    cfg.RAGTopK,
	})
	composer := usecase.NewComposer(generator, usecase.ComposerConfig{
		MaxContextChars: cfg.RAGContextChars,
		GraphHops:       cfg.RAGGraphHops,
	})

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, storage, chunker, embedder, extractor, vectorIdx, keyword, graph)
	answerUC := usecase.NewAnswerUseCase(orchestrator, composer, conversations)

	closeGraph := func() {}
	if closer, ok := graph.(interface{ Close(context.Context) error }); ok {
		closeGraph = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = closer.Close(closeCtx)
		}
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:         queue,
		Repo:          repo,
		Conversations: conversations,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		AnswerUC:  answerUC,

		closeFn: func() {
			queue.Close()
			closeGraph()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
