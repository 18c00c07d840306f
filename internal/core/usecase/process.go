package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
)

// ProcessDocumentUseCase turns stored plain text into searchable state:
// chunks feed the vector and keyword indexes, extracted entities feed the
// graph store.
type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	chunker   ports.Chunker
	embedder  ports.Embedder
	extractor ports.EntityExtractor
	vectorIdx ports.VectorIndex
	keyword   ports.KeywordIndex
	graph     ports.GraphStore
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	chunker ports.Chunker,
	embedder ports.Embedder,
	extractor ports.EntityExtractor,
	vectorIdx ports.VectorIndex,
	keyword ports.KeywordIndex,
	graph ports.GraphStore,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:      repo,
		storage:   storage,
		chunker:   chunker,
		embedder:  embedder,
		extractor: extractor,
		vectorIdx: vectorIdx,
		keyword:   keyword,
		graph:     graph,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	chunkCount, entityCount, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveIndexStats(ctx, documentID, chunkCount, entityCount); err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (int, int, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch document by id: %w", err)
	}

	text, err := uc.loadText(ctx, doc)
	if err != nil {
		return 0, 0, err
	}

	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	if err := uc.vectorIdx.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return 0, 0, fmt.Errorf("index chunks in vector store: %w", err)
	}
	if err := uc.keyword.IndexChunks(ctx, doc, chunks); err != nil {
		return 0, 0, fmt.Errorf("index chunks in keyword store: %w", err)
	}

	entityCount, err := uc.buildGraph(ctx, doc, text)
	if err != nil {
		return 0, 0, err
	}

	return len(chunks), entityCount, nil
}

func (uc *ProcessDocumentUseCase) loadText(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open stored text: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read stored text: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "load text", errors.New("stored document is empty"))
	}
	return text, nil
}

// buildGraph extracts entities/relations and upserts them. The graph store is
// optional; without one the pipeline indexes chunks only.
func (uc *ProcessDocumentUseCase) buildGraph(ctx context.Context, doc *domain.Document, text string) (int, error) {
	if uc.graph == nil {
		return 0, nil
	}

	graph, err := uc.extractor.ExtractEntities(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("extract entities: %w", err)
	}
	if len(graph.Entities) == 0 {
		slog.Info("no_entities_extracted", "document_id", doc.ID)
		return 0, nil
	}

	if err := uc.graph.UpsertGraph(ctx, doc.KnowledgeBaseID, doc.ID, graph); err != nil {
		return 0, fmt.Errorf("upsert entity graph: %w", err)
	}
	return len(graph.Entities), nil
}
