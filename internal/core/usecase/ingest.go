package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
)

// IngestDocumentUseCase accepts already-extracted plain text (parsing/OCR is
// an upstream collaborator's job), stores it, and enqueues indexing.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Ingest(
	ctx context.Context,
	kbID, title string,
	text io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(kbID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("kb_id is required"))
	}
	if strings.TrimSpace(title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", errors.New("title is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s.txt", id, sanitizeTitle(title))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, text); err != nil {
		return nil, fmt.Errorf("save text to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:              id,
		KnowledgeBaseID: kbID,
		Title:           title,
		StoragePath:     storageKey,
		Status:          domain.StatusUploaded,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func sanitizeTitle(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		return "document"
	}
	const maxKeyTitle = 64
	if len(name) > maxKeyTitle {
		name = name[:maxKeyTitle]
	}
	return name
}
