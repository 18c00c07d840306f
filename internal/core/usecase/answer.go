package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
)

// AnswerUseCase is the single inbound entry point: orchestrated retrieval,
// context composition, generation and conversation bookkeeping.
type AnswerUseCase struct {
	orchestrator  *Orchestrator
	composer      *Composer
	conversations ports.ConversationStore
}

func NewAnswerUseCase(
	orchestrator *Orchestrator,
	composer *Composer,
	conversations ports.ConversationStore,
) *AnswerUseCase {
	return &AnswerUseCase{
		orchestrator:  orchestrator,
		composer:      composer,
		conversations: conversations,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))
	}
	if req.Strategy == "" {
		req.Strategy = domain.StrategyHybrid
	}
	if req.Mode == "" {
		req.Mode = domain.ModeNaive
	}
	if req.Mode == domain.ModeGraphAugmented && !uc.orchestrator.GraphEnabled() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("graph-augmented mode requires a configured graph store"))
	}

	filter := domain.SearchFilter{KnowledgeBaseID: req.KnowledgeBaseID}
	retrieval, err := uc.orchestrator.Retrieve(ctx, domain.RetrievalRequest{
		Query:    req.Question,
		Strategy: req.Strategy,
		TopK:     req.TopK,
		Filter:   filter,
		Weights:  req.Weights,
	})
	if err != nil {
		return nil, err
	}

	composed, err := uc.composer.Compose(ctx, req.Question, req.Mode, retrieval.Results, uc.orchestrator.Graph(), filter)
	if err != nil {
		return nil, err
	}

	degraded := retrieval.Degraded
	if composed.GraphDegraded && !containsSource(degraded, domain.SourceGraph) {
		degraded = append(degraded, domain.SourceGraph)
	}

	answer := &domain.Answer{
		Text:     composed.Text,
		Sources:  composed.Sources,
		Degraded: degraded,
		Strategy: req.Strategy,
		Mode:     req.Mode,
	}
	answer.ConversationID = uc.recordTurn(ctx, req, answer)
	return answer, nil
}

// Search exposes fused retrieval without generation.
func (uc *AnswerUseCase) Search(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if req.Strategy == "" {
		req.Strategy = domain.StrategyHybrid
	}
	return uc.orchestrator.Retrieve(ctx, req)
}

// recordTurn persists the answered question when a conversation store is
// wired. Persistence failure never fails an already produced answer.
func (uc *AnswerUseCase) recordTurn(ctx context.Context, req domain.AnswerRequest, answer *domain.Answer) string {
	if uc.conversations == nil {
		return ""
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	turn := domain.ConversationTurn{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		KnowledgeBaseID: req.KnowledgeBaseID,
		Question:        req.Question,
		Answer:          answer.Text,
		Sources:         answer.Sources,
		CreatedAt:       time.Now().UTC(),
	}
	if err := uc.conversations.AppendTurn(ctx, turn); err != nil {
		slog.Warn("conversation_append_failed", "conversation_id", conversationID, "error", err)
		return ""
	}
	return conversationID
}

func containsSource(sources []domain.Source, target domain.Source) bool {
	for _, s := range sources {
		if s == target {
			return true
		}
	}
	return false
}
