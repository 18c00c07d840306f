package ports

import (
	"context"
	"io"

	"github.com/dkoval/knowbase/internal/core/domain"
)

// CandidateRetriever is the uniform contract all three retrieval sources
// satisfy. Implementations return candidates sorted best-first, at most topK
// of them, and wrap store errors/timeouts in domain.ErrRetrieverUnavailable
// so callers can tell "empty" from "errored".
type CandidateRetriever interface {
	Source() domain.Source
	Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.Candidate, error)
}

// GraphStore extends entity retrieval with neighborhood expansion and the
// write path used during ingestion.
type GraphStore interface {
	CandidateRetriever
	Neighbors(ctx context.Context, entityIDs []string, hops int, filter domain.SearchFilter) ([]domain.RelationTriple, error)
	UpsertGraph(ctx context.Context, kbID, documentID string, graph domain.EntityGraph) error
}

// VectorIndex stores embedded chunks for dense search.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
}

// KeywordIndex stores chunk text for sparse full-text search.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string) error
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator performs the outbound generation calls: the final answer
// and (in contextual mode) the condensed summary.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt, systemInstructions string) (string, error)
}

// EntityExtractor pulls entities and relation triples out of chunk text.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) (domain.EntityGraph, error)
}

// Chunker splits extracted text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// DocumentRepository persists document metadata and processing state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexStats(ctx context.Context, id string, chunkCount, entityCount int) error
}

// ObjectStorage stores raw ingested text.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// ConversationStore records answered questions.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) error
	ListTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error)
}
