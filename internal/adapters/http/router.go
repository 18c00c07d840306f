package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
	"github.com/dkoval/knowbase/internal/observability/metrics"
)

const serviceName = "knowbase-api"

// Options carries the traffic-control knobs for the middleware chain.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxWait        time.Duration
}

type Router struct {
	answers       ports.AnswerService
	search        ports.SearchService
	ingestUC      ports.DocumentIngestor
	documents     ports.DocumentReader
	conversations ports.ConversationReader
	metrics       *metrics.HTTPServerMetrics
	opts          Options
}

func NewRouter(
	answers ports.AnswerService,
	search ports.SearchService,
	ingestUC ports.DocumentIngestor,
	documents ports.DocumentReader,
	conversations ports.ConversationReader,
	serverMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	return &Router{
		answers:       answers,
		search:        search,
		ingestUC:      ingestUC,
		documents:     documents,
		conversations: conversations,
		metrics:       serverMetrics,
		opts:          opts,
	}
}

// Handler assembles the route table and the middleware chain. The embedded
// OpenAPI contract is loaded once here; a broken contract fails startup.
func (rt *Router) Handler(ctx context.Context) (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/v1/answer", rt.answer)
	mux.HandleFunc("/v1/search", rt.searchCandidates)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/conversations/", rt.getConversation)

	specRouter, err := newOpenAPIRouter(ctx)
	if err != nil {
		return nil, err
	}

	var handler http.Handler = mux
	handler = openAPIValidationMiddleware(specRouter, handler)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.MaxWait)
	handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type answerRequestBody struct {
	Question        string                    `json:"question"`
	KnowledgeBaseID string                    `json:"kb_id"`
	Strategy        string                    `json:"strategy"`
	Mode            string                    `json:"mode"`
	TopK            int                       `json:"top_k"`
	Weights         map[domain.Source]float64 `json:"weights"`
	ConversationID  string                    `json:"conversation_id"`
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body answerRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	strategy, err := domain.ParseStrategy(body.Strategy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	mode, err := domain.ParseAnswerMode(body.Mode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	answer, err := rt.answers.Answer(r.Context(), domain.AnswerRequest{
		Question:        body.Question,
		KnowledgeBaseID: body.KnowledgeBaseID,
		Strategy:        strategy,
		Mode:            mode,
		TopK:            body.TopK,
		Weights:         body.Weights,
		ConversationID:  body.ConversationID,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrGenerationFailed) {
			rt.metrics.RecordGenerationFailure(serviceName)
		}
		writeDomainError(w, err)
		return
	}

	rt.metrics.RecordAnswer(serviceName, string(answer.Mode), attributionChars(answer.Sources))
	writeJSON(w, http.StatusOK, answer)
}

type searchRequestBody struct {
	Query           string                    `json:"query"`
	KnowledgeBaseID string                    `json:"kb_id"`
	Strategy        string                    `json:"strategy"`
	TopK            int                       `json:"top_k"`
	Weights         map[domain.Source]float64 `json:"weights"`
}

func (rt *Router) searchCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	strategy, err := domain.ParseStrategy(body.Strategy)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	result, err := rt.search.Search(r.Context(), domain.RetrievalRequest{
		Query:    body.Query,
		Strategy: strategy,
		TopK:     body.TopK,
		Filter:   domain.SearchFilter{KnowledgeBaseID: body.KnowledgeBaseID},
		Weights:  body.Weights,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rt.metrics.RecordRetrieval(
		serviceName,
		"/v1/search",
		string(strategy),
		len(result.Results),
		sourceStrings(result.Degraded),
		time.Since(start),
	)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = fileHeader.Filename
	}

	doc, err := rt.ingestUC.Ingest(r.Context(), r.FormValue("kb_id"), title, file)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "document id is required")
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	turns, err := rt.conversations.ListTurns(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func attributionChars(sources []domain.SourceAttribution) int {
	total := 0
	for _, s := range sources {
		total += len(s.Snippet)
	}
	return total
}

func sourceStrings(sources []domain.Source) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, string(s))
	}
	return out
}

func writeDomainError(w http.ResponseWriter, err error) {
	writeJSONError(w, mapErrorToHTTPStatus(err), err.Error())
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
