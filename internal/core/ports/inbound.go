package ports

import (
	"context"
	"io"

	"github.com/dkoval/knowbase/internal/core/domain"
)

// AnswerService is the inbound contract for question answering.
type AnswerService interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error)
}

// SearchService exposes fused retrieval without generation.
type SearchService interface {
	Search(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error)
}

// DocumentIngestor is the inbound contract for plain-text ingestion.
type DocumentIngestor interface {
	Ingest(ctx context.Context, kbID, title string, text io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ConversationReader lists recorded answer turns.
type ConversationReader interface {
	ListTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
}
