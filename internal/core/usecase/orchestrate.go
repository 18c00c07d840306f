package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/fusion"
	"github.com/dkoval/knowbase/internal/core/ports"
)

const (
	defaultTopK          = 5
	defaultSourceTimeout = 10 * time.Second
)

// OrchestratorConfig tunes fan-out and fusion. All sources share
// SourceTimeout unless SourceTimeouts overrides one of them.
type OrchestratorConfig struct {
	FusionK        int
	FusionEpsilon  float64
	Weights        map[domain.Source]float64
	SourceTimeout  time.Duration
	SourceTimeouts map[domain.Source]time.Duration
	// CandidateLimit is how many candidates each source is asked for before
	// fusion; fused output is still truncated to the request's top_k.
	CandidateLimit int
	// DefaultTopK applies when a request omits top_k.
	DefaultTopK int
}

// Orchestrator maps a retrieval strategy onto concrete retriever calls and
// feeds whatever succeeded into the fusion engine. Retrievers are injected at
// construction; the graph store is optional and resolved once at startup.
type Orchestrator struct {
	vector  ports.CandidateRetriever
	keyword ports.CandidateRetriever
	graph   ports.GraphStore
	cfg     OrchestratorConfig
}

func NewOrchestrator(
	vector ports.CandidateRetriever,
	keyword ports.CandidateRetriever,
	graph ports.GraphStore,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 30
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaultTopK
	}
	return &Orchestrator{
		vector:  vector,
		keyword: keyword,
		graph:   graph,
		cfg:     cfg,
	}
}

// GraphEnabled reports whether a graph store was wired at startup.
func (o *Orchestrator) GraphEnabled() bool {
	return o.graph != nil
}

// Graph exposes the wired graph store for neighborhood expansion.
func (o *Orchestrator) Graph() ports.GraphStore {
	return o.graph
}

func (o *Orchestrator) Retrieve(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	if req.TopK <= 0 {
		req.TopK = o.cfg.DefaultTopK
	}

	switch req.Strategy {
	case domain.StrategyVector:
		return o.retrieveSingle(ctx, o.vector, req)
	case domain.StrategyKeyword:
		return o.retrieveSingle(ctx, o.keyword, req)
	case domain.StrategyGraph:
		if o.graph == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", errors.New("graph retriever not configured"))
		}
		return o.retrieveSingle(ctx, o.graph, req)
	case domain.StrategyHybrid:
		return o.retrieveHybrid(ctx, req)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("unknown strategy %q", req.Strategy))
	}
}

// retrieveSingle is the explicit fast path: one list needs no cross-source
// reconciliation, so source ranks become the final order untouched by RRF.
func (o *Orchestrator) retrieveSingle(
	ctx context.Context,
	retriever ports.CandidateRetriever,
	req domain.RetrievalRequest,
) (*domain.RetrievalResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeoutFor(retriever.Source()))
	defer cancel()

	candidates, err := retriever.Retrieve(callCtx, req.Query, req.TopK, req.Filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFusionUnavailable, "retrieve "+string(retriever.Source()), err)
	}

	results := make([]domain.FusedResult, 0, len(candidates))
	for i, cand := range candidates {
		results = append(results, domain.FusedResult{
			ItemID:  cand.ItemID,
			Score:   cand.RawScore,
			Payload: cand.Payload,
			Sources: []domain.SourceRank{{
				Source:   retriever.Source(),
				Rank:     i + 1,
				RawScore: cand.RawScore,
			}},
		})
	}
	return &domain.RetrievalResult{Results: results}, nil
}

type sourceOutcome struct {
	source     domain.Source
	candidates []domain.Candidate
	err        error
}

// retrieveHybrid fans out to every wired retriever without one call blocking
// the start of another, then joins: all calls settle before fusion runs, so
// finish order never affects the fused order.
func (o *Orchestrator) retrieveHybrid(ctx context.Context, req domain.RetrievalRequest) (*domain.RetrievalResult, error) {
	retrievers := []ports.CandidateRetriever{o.vector, o.keyword}
	if o.graph != nil {
		retrievers = append(retrievers, o.graph)
	}

	limit := o.cfg.CandidateLimit
	if req.TopK > limit {
		limit = req.TopK
	}

	outcomes := make([]sourceOutcome, len(retrievers))
	var wg sync.WaitGroup
	for i, retriever := range retrievers {
		wg.Add(1)
		go func(i int, retriever ports.CandidateRetriever) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, o.timeoutFor(retriever.Source()))
			defer cancel()

			candidates, err := retriever.Retrieve(callCtx, req.Query, limit, req.Filter)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				err = domain.WrapError(domain.ErrRetrieverUnavailable, string(retriever.Source())+" timeout", err)
			}
			outcomes[i] = sourceOutcome{source: retriever.Source(), candidates: candidates, err: err}
		}(i, retriever)
	}
	wg.Wait()

	// A cancelled request never computes partial fusion.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lists := make([]fusion.List, 0, len(outcomes))
	degraded := make([]domain.Source, 0)
	var failures []error
	for _, outcome := range outcomes {
		if outcome.err != nil {
			slog.Warn("retriever_degraded", "source", string(outcome.source), "error", outcome.err)
			degraded = append(degraded, outcome.source)
			failures = append(failures, outcome.err)
			continue
		}
		lists = append(lists, fusion.List{
			Source:     outcome.source,
			Weight:     o.weightFor(outcome.source, req.Weights),
			Candidates: normalizeRanks(outcome.candidates, outcome.source),
		})
	}

	if len(lists) == 0 {
		return nil, domain.WrapError(domain.ErrFusionUnavailable, "retrieve hybrid", errors.Join(failures...))
	}

	fused, err := fusion.Fuse(lists, fusion.Config{K: o.cfg.FusionK, Epsilon: o.cfg.FusionEpsilon}, req.TopK)
	if err != nil {
		return nil, err
	}

	sort.Slice(degraded, func(i, j int) bool { return degraded[i] < degraded[j] })
	return &domain.RetrievalResult{Results: fused, Degraded: degraded}, nil
}

func (o *Orchestrator) timeoutFor(source domain.Source) time.Duration {
	if t, ok := o.cfg.SourceTimeouts[source]; ok && t > 0 {
		return t
	}
	return o.cfg.SourceTimeout
}

func (o *Orchestrator) weightFor(source domain.Source, overrides map[domain.Source]float64) float64 {
	if w, ok := overrides[source]; ok && w > 0 {
		return w
	}
	if w, ok := o.cfg.Weights[source]; ok && w > 0 {
		return w
	}
	return 1.0
}

// normalizeRanks re-stamps source and 1-based rank so every list entering
// fusion satisfies the strict no-gap rank invariant.
func normalizeRanks(candidates []domain.Candidate, source domain.Source) []domain.Candidate {
	for i := range candidates {
		candidates[i].Source = source
		candidates[i].Rank = i + 1
	}
	return candidates
}
