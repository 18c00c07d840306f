package fusion

import (
	"math"
	"testing"

	"github.com/dkoval/knowbase/internal/core/domain"
)

func candidates(source domain.Source, ids ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, domain.Candidate{
			ItemID:   id,
			Source:   source,
			Rank:     i + 1,
			RawScore: 1.0 - float64(i)*0.1,
			Payload:  domain.Payload{Text: "text-" + id},
		})
	}
	return out
}

func TestFuseEmptyInputIsFusionUnavailable(t *testing.T) {
	_, err := Fuse(nil, DefaultConfig(), 5)
	if !domain.IsKind(err, domain.ErrFusionUnavailable) {
		t.Fatalf("expected ErrFusionUnavailable, got %v", err)
	}
}

func TestFuseTwoListScenario(t *testing.T) {
	lists := []List{
		{Source: domain.SourceVector, Candidates: candidates(domain.SourceVector, "A", "B", "C")},
		{Source: domain.SourceKeyword, Candidates: candidates(domain.SourceKeyword, "B", "A", "D")},
	}

	fused, err := Fuse(lists, DefaultConfig(), 3)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 3 {
		t.Fatalf("expected top_k=3 results, got %d", len(fused))
	}

	// A and B both carry ranks {1,2}; the score tie resolves lexically.
	if fused[0].ItemID != "A" || fused[1].ItemID != "B" {
		t.Fatalf("expected [A B ...], got [%s %s ...]", fused[0].ItemID, fused[1].ItemID)
	}
	wantScore := 1.0/61.0 + 1.0/62.0
	if math.Abs(fused[0].Score-wantScore) > 1e-12 {
		t.Fatalf("expected fused score %.6f, got %.6f", wantScore, fused[0].Score)
	}
	if len(fused[0].Sources) != 2 {
		t.Fatalf("expected 2 contributing sources for A, got %d", len(fused[0].Sources))
	}
	if fused[2].ItemID != "C" && fused[2].ItemID != "D" {
		t.Fatalf("expected single-source item third, got %s", fused[2].ItemID)
	}
}

func TestFuseDeterministicAcrossListOrder(t *testing.T) {
	vector := List{Source: domain.SourceVector, Candidates: candidates(domain.SourceVector, "A", "B", "C")}
	keyword := List{Source: domain.SourceKeyword, Candidates: candidates(domain.SourceKeyword, "B", "A", "D")}
	graph := List{Source: domain.SourceGraph, Candidates: candidates(domain.SourceGraph, "D", "A")}

	first, err := Fuse([]List{vector, keyword, graph}, DefaultConfig(), 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	second, err := Fuse([]List{graph, vector, keyword}, DefaultConfig(), 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("result length differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ItemID != second[i].ItemID {
			t.Fatalf("position %d differs: %s vs %s", i, first[i].ItemID, second[i].ItemID)
		}
		if first[i].Score != second[i].Score {
			t.Fatalf("score for %s differs: %v vs %v", first[i].ItemID, first[i].Score, second[i].Score)
		}
		if first[i].Payload != second[i].Payload {
			t.Fatalf("payload for %s differs across list orders", first[i].ItemID)
		}
	}
}

func TestFuseCorroborationBeatsSingleTopHit(t *testing.T) {
	// Two rank-5 contributions (2/65) outweigh one rank-1 hit (1/61) at k=60.
	pad := []string{"p1", "p2", "p3", "p4"}
	vector := candidates(domain.SourceVector, append(append([]string{}, pad...), "X")...)
	keyword := candidates(domain.SourceKeyword, "Y", "q1", "q2", "q3", "X")

	fused, err := Fuse([]List{
		{Source: domain.SourceVector, Candidates: vector},
		{Source: domain.SourceKeyword, Candidates: keyword},
	}, DefaultConfig(), 20)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	posX, posY := -1, -1
	var scoreX, scoreY float64
	for i, f := range fused {
		switch f.ItemID {
		case "X":
			posX, scoreX = i, f.Score
		case "Y":
			posY, scoreY = i, f.Score
		}
	}
	if posX < 0 || posY < 0 {
		t.Fatalf("X and Y must both be fused, got %+v", fused)
	}
	if scoreX <= scoreY {
		t.Fatalf("two rank-5 contributions (%.6f) must beat one rank-1 (%.6f)", scoreX, scoreY)
	}
	if posX > posY {
		t.Fatalf("X must rank above Y, got X=%d Y=%d", posX, posY)
	}
}

func TestFuseRankMonotonicity(t *testing.T) {
	vector := candidates(domain.SourceVector, "good", "bad", "f1")
	keyword := candidates(domain.SourceKeyword, "good", "f2", "bad")

	fused, err := Fuse([]List{
		{Source: domain.SourceVector, Candidates: vector},
		{Source: domain.SourceKeyword, Candidates: keyword},
	}, DefaultConfig(), 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}

	var goodScore, badScore float64
	for _, f := range fused {
		switch f.ItemID {
		case "good":
			goodScore = f.Score
		case "bad":
			badScore = f.Score
		}
	}
	if goodScore < badScore {
		t.Fatalf("uniformly better ranks must not score lower: good=%v bad=%v", goodScore, badScore)
	}
}

func TestFuseTopKTruncation(t *testing.T) {
	lists := []List{
		{Source: domain.SourceVector, Candidates: candidates(domain.SourceVector, "a", "b", "c", "d", "e")},
		{Source: domain.SourceKeyword, Candidates: candidates(domain.SourceKeyword, "f", "g", "h")},
	}
	fused, err := Fuse(lists, DefaultConfig(), 4)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if len(fused) != 4 {
		t.Fatalf("expected 4 results, got %d", len(fused))
	}
}

func TestFuseWeightsShiftRanking(t *testing.T) {
	lists := []List{
		{Source: domain.SourceVector, Weight: 0.1, Candidates: candidates(domain.SourceVector, "v1", "v2")},
		{Source: domain.SourceKeyword, Weight: 2.0, Candidates: candidates(domain.SourceKeyword, "k1", "k2")},
	}
	fused, err := Fuse(lists, DefaultConfig(), 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	if fused[0].ItemID != "k1" {
		t.Fatalf("expected weighted keyword hit first, got %s", fused[0].ItemID)
	}
}

func TestFusePayloadFollowsBestRank(t *testing.T) {
	vector := []domain.Candidate{
		{ItemID: "A", Rank: 1, Payload: domain.Payload{Text: "from-vector"}},
	}
	keyword := []domain.Candidate{
		{ItemID: "z", Rank: 1, Payload: domain.Payload{Text: "z"}},
		{ItemID: "A", Rank: 2, Payload: domain.Payload{Text: "from-keyword"}},
	}
	fused, err := Fuse([]List{
		{Source: domain.SourceKeyword, Candidates: keyword},
		{Source: domain.SourceVector, Candidates: vector},
	}, DefaultConfig(), 10)
	if err != nil {
		t.Fatalf("Fuse() error = %v", err)
	}
	for _, f := range fused {
		if f.ItemID == "A" && f.Payload.Text != "from-vector" {
			t.Fatalf("payload must follow the best-ranked contribution, got %q", f.Payload.Text)
		}
	}
}
