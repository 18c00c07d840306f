package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/dkoval/knowbase/internal/core/domain"
)

type answerFake struct {
	answer *domain.Answer
	err    error
	gotReq domain.AnswerRequest
}

func (f *answerFake) Answer(_ context.Context, req domain.AnswerRequest) (*domain.Answer, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type searchFake struct {
	result *domain.RetrievalResult
	err    error
	gotReq domain.RetrievalRequest
}

func (f *searchFake) Search(_ context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func toolRequest(args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected single content entry, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcpgo.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestAnswerToolReturnsAnswerJSON(t *testing.T) {
	answers := &answerFake{answer: &domain.Answer{
		Text:     "restart the broker",
		Strategy: domain.StrategyHybrid,
		Mode:     domain.ModeNaive,
	}}
	srv := NewServer(answers, &searchFake{})

	result, err := srv.handleAnswer(context.Background(), toolRequest(map[string]any{
		"question": "how do I restart the broker?",
		"kb_id":    "kb-1",
		"strategy": "hybrid",
	}))
	if err != nil {
		t.Fatalf("handleAnswer: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var answer domain.Answer
	if err := json.Unmarshal([]byte(textContent(t, result)), &answer); err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	if answer.Text != "restart the broker" {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if answers.gotReq.KnowledgeBaseID != "kb-1" {
		t.Fatalf("expected kb filter, got %+v", answers.gotReq)
	}
	if answers.gotReq.Strategy != domain.StrategyHybrid {
		t.Fatalf("expected hybrid strategy, got %q", answers.gotReq.Strategy)
	}
}

func TestAnswerToolRequiresQuestion(t *testing.T) {
	srv := NewServer(&answerFake{}, &searchFake{})

	result, err := srv.handleAnswer(context.Background(), toolRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleAnswer: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestAnswerToolReportsServiceFailure(t *testing.T) {
	answers := &answerFake{err: domain.WrapError(domain.ErrGenerationFailed, "generate", errors.New("model down"))}
	srv := NewServer(answers, &searchFake{})

	result, err := srv.handleAnswer(context.Background(), toolRequest(map[string]any{"question": "q"}))
	if err != nil {
		t.Fatalf("handleAnswer: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for generation failure")
	}
	if !strings.Contains(textContent(t, result), "model down") {
		t.Fatalf("expected cause in tool error, got %s", textContent(t, result))
	}
}

func TestSearchToolReturnsFusedResults(t *testing.T) {
	search := &searchFake{result: &domain.RetrievalResult{
		Results: []domain.FusedResult{
			{ItemID: "doc-1:0", Score: 0.03},
		},
	}}
	srv := NewServer(&answerFake{}, search)

	result, err := srv.handleSearch(context.Background(), toolRequest(map[string]any{
		"query": "broker restart",
		"top_k": 3,
	}))
	if err != nil {
		t.Fatalf("handleSearch: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}

	var out domain.RetrievalResult
	if err := json.Unmarshal([]byte(textContent(t, result)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].ItemID != "doc-1:0" {
		t.Fatalf("unexpected results %+v", out.Results)
	}
	if search.gotReq.TopK != 3 {
		t.Fatalf("expected top_k 3, got %d", search.gotReq.TopK)
	}
}
