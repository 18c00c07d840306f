// Package mcp exposes the answer and search services as MCP tools so
// agent runtimes can query the knowledge base directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
)

const serverVersion = "1.0.0"

type Server struct {
	answers ports.AnswerService
	search  ports.SearchService
	mcp     *server.MCPServer
}

func NewServer(answers ports.AnswerService, search ports.SearchService) *Server {
	s := &Server{
		answers: answers,
		search:  search,
	}

	s.mcp = server.NewMCPServer(
		"knowbase",
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.mcp.AddTool(mcp.NewTool("kb_answer",
		mcp.WithDescription("Answer a question from the knowledge base using hybrid retrieval and generation, with source attribution"),
		mcp.WithString("question", mcp.Required(), mcp.Description("The question to answer")),
		mcp.WithString("kb_id", mcp.Description("Restrict retrieval to one knowledge base")),
		mcp.WithString("strategy", mcp.Description("Retrieval strategy"), mcp.Enum("vector", "keyword", "graph", "hybrid")),
		mcp.WithString("mode", mcp.Description("Answer composition mode"), mcp.Enum("naive", "contextual", "graph-augmented")),
		mcp.WithNumber("top_k", mcp.Description("Number of fused results to build the context from")),
	), s.handleAnswer)

	s.mcp.AddTool(mcp.NewTool("kb_search",
		mcp.WithDescription("Search the knowledge base and return fused, ranked candidates without generating an answer"),
		mcp.WithString("query", mcp.Required(), mcp.Description("The search query")),
		mcp.WithString("kb_id", mcp.Description("Restrict retrieval to one knowledge base")),
		mcp.WithString("strategy", mcp.Description("Retrieval strategy"), mcp.Enum("vector", "keyword", "graph", "hybrid")),
		mcp.WithNumber("top_k", mcp.Description("Number of results to return")),
	), s.handleSearch)

	return s
}

// ServeHTTP runs the streamable HTTP transport until the listener fails.
func (s *Server) ServeHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcp).Start(addr)
}

func (s *Server) handleAnswer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	strategy, err := domain.ParseStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := domain.ParseAnswerMode(req.GetString("mode", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.answers.Answer(ctx, domain.AnswerRequest{
		Question:        question,
		KnowledgeBaseID: req.GetString("kb_id", ""),
		Strategy:        strategy,
		Mode:            mode,
		TopK:            req.GetInt("top_k", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer: %v", err)), nil
	}

	return toolResultJSON(answer)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	strategy, err := domain.ParseStrategy(req.GetString("strategy", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.search.Search(ctx, domain.RetrievalRequest{
		Query:    query,
		Strategy: strategy,
		TopK:     req.GetInt("top_k", 0),
		Filter:   domain.SearchFilter{KnowledgeBaseID: req.GetString("kb_id", "")},
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search: %v", err)), nil
	}

	return toolResultJSON(result)
}

func toolResultJSON(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
