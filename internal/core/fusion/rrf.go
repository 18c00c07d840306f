// Package fusion merges independently ranked candidate lists into a single
// ranking with weighted Reciprocal Rank Fusion. Raw scores are never compared
// across sources; only ranks enter the fused score, so no cross-source score
// calibration is needed.
package fusion

import (
	"errors"
	"math"
	"sort"

	"github.com/dkoval/knowbase/internal/core/domain"
)

// List is one source's ordered result list. Weight <= 0 means 1.0.
type List struct {
	Source     domain.Source
	Weight     float64
	Candidates []domain.Candidate
}

// Config controls the RRF curve and tie detection.
type Config struct {
	// K dampens the advantage of rank-1 items; larger values flatten the
	// contribution curve.
	K int
	// Epsilon is the fused-score distance treated as a tie.
	Epsilon float64
}

func DefaultConfig() Config {
	return Config{K: 60, Epsilon: 1e-9}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.K <= 0 {
		c.K = def.K
	}
	if c.Epsilon <= 0 {
		c.Epsilon = def.Epsilon
	}
	return c
}

// Fuse merges the lists into one ranking truncated to topK. The output is a
// pure function of (source, rank, weight, K): passing the same lists in any
// order yields the same result. Items missing from a source contribute
// nothing for it; absence is not penalized further.
//
// Ties within Epsilon are broken by contributing-source count descending,
// then best single-source rank ascending, then item id lexical order.
func Fuse(lists []List, cfg Config, topK int) ([]domain.FusedResult, error) {
	if len(lists) == 0 {
		return nil, domain.WrapError(domain.ErrFusionUnavailable, "fuse", errors.New("no candidate lists"))
	}
	cfg = cfg.normalize()

	acc := make(map[string]*domain.FusedResult)
	for _, list := range lists {
		weight := list.Weight
		if weight <= 0 {
			weight = 1.0
		}
		for idx, cand := range list.Candidates {
			rank := idx + 1
			fused, ok := acc[cand.ItemID]
			if !ok {
				fused = &domain.FusedResult{ItemID: cand.ItemID}
				acc[cand.ItemID] = fused
			}
			fused.Score += weight / float64(cfg.K+rank)
			fused.Sources = append(fused.Sources, domain.SourceRank{
				Source:   list.Source,
				Rank:     rank,
				RawScore: cand.RawScore,
			})
			if preferPayload(fused, rank, list.Source) {
				fused.Payload = cand.Payload
			}
		}
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, fused := range acc {
		sort.Slice(fused.Sources, func(i, j int) bool {
			return fused.Sources[i].Source < fused.Sources[j].Source
		})
		out = append(out, *fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if math.Abs(a.Score-b.Score) > cfg.Epsilon {
			return a.Score > b.Score
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		if a.BestRank() != b.BestRank() {
			return a.BestRank() < b.BestRank()
		}
		return a.ItemID < b.ItemID
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// preferPayload keeps the payload from the best-ranked contribution; rank
// ties resolve by source name so list order cannot leak into the output.
func preferPayload(fused *domain.FusedResult, rank int, source domain.Source) bool {
	if len(fused.Sources) == 1 {
		return true
	}
	best := fused.Sources[0]
	for _, s := range fused.Sources[:len(fused.Sources)-1] {
		if s.Rank < best.Rank || (s.Rank == best.Rank && s.Source < best.Source) {
			best = s
		}
	}
	if rank != best.Rank {
		return rank < best.Rank
	}
	return source < best.Source
}
