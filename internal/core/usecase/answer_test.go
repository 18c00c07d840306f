package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkoval/knowbase/internal/core/domain"
)

type conversationStoreFake struct {
	turns []domain.ConversationTurn
	err   error
}

func (f *conversationStoreFake) AppendTurn(_ context.Context, turn domain.ConversationTurn) error {
	if f.err != nil {
		return f.err
	}
	f.turns = append(f.turns, turn)
	return nil
}

func (f *conversationStoreFake) ListTurns(_ context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	out := make([]domain.ConversationTurn, 0)
	for _, turn := range f.turns {
		if turn.ConversationID == conversationID {
			out = append(out, turn)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newAnswerFixture(conversations *conversationStoreFake) (*AnswerUseCase, *generatorFake) {
	vector := &retrieverFake{source: domain.SourceVector, candidates: hits(domain.SourceVector, "a", "b")}
	keyword := &retrieverFake{source: domain.SourceKeyword, candidates: hits(domain.SourceKeyword, "b", "c")}
	orch := NewOrchestrator(vector, keyword, nil, OrchestratorConfig{SourceTimeout: 200 * time.Millisecond})
	gen := &generatorFake{responses: []string{"generated answer"}}
	composer := NewComposer(gen, ComposerConfig{MaxContextChars: 1000})
	var store conversationStoreFake
	if conversations == nil {
		conversations = &store
	}
	return NewAnswerUseCase(orch, composer, conversations), gen
}

func TestAnswerEmptyQuestion(t *testing.T) {
	uc, _ := newAnswerFixture(nil)

	_, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "   "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerDefaultsToHybridNaive(t *testing.T) {
	store := &conversationStoreFake{}
	uc, _ := newAnswerFixture(store)

	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "what is b"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Strategy != domain.StrategyHybrid || answer.Mode != domain.ModeNaive {
		t.Fatalf("expected hybrid/naive defaults, got %s/%s", answer.Strategy, answer.Mode)
	}
	if answer.Text != "generated answer" {
		t.Fatalf("unexpected text %q", answer.Text)
	}
	if len(answer.Sources) == 0 {
		t.Fatalf("expected source attributions")
	}
	if answer.ConversationID == "" {
		t.Fatalf("expected a conversation id to be assigned")
	}
	if len(store.turns) != 1 || store.turns[0].Question != "what is b" {
		t.Fatalf("expected one recorded turn, got %+v", store.turns)
	}
}

func TestAnswerReusesConversationID(t *testing.T) {
	store := &conversationStoreFake{}
	uc, _ := newAnswerFixture(store)

	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{
		Question:       "follow up",
		ConversationID: "conv-1",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.ConversationID != "conv-1" {
		t.Fatalf("expected conv-1, got %s", answer.ConversationID)
	}
	if store.turns[0].ConversationID != "conv-1" {
		t.Fatalf("turn recorded under wrong conversation: %+v", store.turns[0])
	}
}

func TestAnswerSurvivesConversationStoreFailure(t *testing.T) {
	store := &conversationStoreFake{err: errors.New("pg down")}
	uc, _ := newAnswerFixture(store)

	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "q"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "generated answer" {
		t.Fatalf("answer must survive bookkeeping failure, got %q", answer.Text)
	}
	if answer.ConversationID != "" {
		t.Fatalf("failed persistence must not claim a conversation id")
	}
}

func TestAnswerGraphAugmentedWithoutGraph(t *testing.T) {
	uc, _ := newAnswerFixture(nil)

	_, err := uc.Answer(context.Background(), domain.AnswerRequest{
		Question: "q",
		Mode:     domain.ModeGraphAugmented,
	})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAnswerPropagatesDegradedSources(t *testing.T) {
	vector := &retrieverFake{source: domain.SourceVector, candidates: hits(domain.SourceVector, "a")}
	keyword := &retrieverFake{source: domain.SourceKeyword, err: errors.New("index offline")}
	orch := NewOrchestrator(vector, keyword, nil, OrchestratorConfig{SourceTimeout: 200 * time.Millisecond})
	gen := &generatorFake{responses: []string{"partial answer"}}
	uc := NewAnswerUseCase(orch, NewComposer(gen, ComposerConfig{MaxContextChars: 1000}), nil)

	answer, err := uc.Answer(context.Background(), domain.AnswerRequest{Question: "q"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(answer.Degraded) != 1 || answer.Degraded[0] != domain.SourceKeyword {
		t.Fatalf("expected keyword degraded, got %v", answer.Degraded)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	uc, _ := newAnswerFixture(nil)

	_, err := uc.Search(context.Background(), domain.RetrievalRequest{Query: ""})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchReturnsFusedResults(t *testing.T) {
	uc, _ := newAnswerFixture(nil)

	result, err := uc.Search(context.Background(), domain.RetrievalRequest{Query: "b", TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(result.Results))
	}
	if result.Results[0].ItemID != "b" {
		t.Fatalf("expected corroborated item b first, got %s", result.Results[0].ItemID)
	}
}
