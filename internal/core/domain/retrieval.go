package domain

// Source identifies the retriever that produced a candidate.
type Source string

const (
	SourceVector  Source = "vector"
	SourceKeyword Source = "keyword"
	SourceGraph   Source = "graph"
)

// Strategy selects which retrievers an answer request fans out to.
type Strategy string

const (
	StrategyVector  Strategy = "vector"
	StrategyKeyword Strategy = "keyword"
	StrategyGraph   Strategy = "graph"
	StrategyHybrid  Strategy = "hybrid"
)

func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(raw) {
	case StrategyVector, StrategyKeyword, StrategyGraph, StrategyHybrid:
		return Strategy(raw), nil
	case "":
		return StrategyHybrid, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse strategy", errUnknownValue(raw))
	}
}

// AnswerMode selects how the composer builds the generation context.
type AnswerMode string

const (
	ModeNaive          AnswerMode = "naive"
	ModeContextual     AnswerMode = "contextual"
	ModeGraphAugmented AnswerMode = "graph-augmented"
)

func ParseAnswerMode(raw string) (AnswerMode, error) {
	switch AnswerMode(raw) {
	case ModeNaive, ModeContextual, ModeGraphAugmented:
		return AnswerMode(raw), nil
	case "":
		return ModeNaive, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse answer mode", errUnknownValue(raw))
	}
}

// SearchFilter scopes retrieval to one knowledge base.
type SearchFilter struct {
	KnowledgeBaseID string
}

// Payload is the opaque content reference carried through fusion untouched.
type Payload struct {
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Candidate is one retrieval hit from a single source, prior to fusion.
// Rank is 1-based within the source list; RawScore stays on the source's own
// scale and is never compared across sources.
type Candidate struct {
	ItemID   string  `json:"item_id"`
	Source   Source  `json:"source"`
	RawScore float64 `json:"raw_score"`
	Rank     int     `json:"rank"`
	Payload  Payload `json:"payload"`
}

// SourceRank records one source's contribution to a fused result.
type SourceRank struct {
	Source   Source  `json:"source"`
	Rank     int     `json:"rank"`
	RawScore float64 `json:"raw_score"`
}

// FusedResult is a post-fusion ranking entry, unique per item id.
type FusedResult struct {
	ItemID  string       `json:"item_id"`
	Score   float64      `json:"score"`
	Sources []SourceRank `json:"sources"`
	Payload Payload      `json:"payload"`
}

// BestRank returns the lowest contributing rank across sources.
func (f FusedResult) BestRank() int {
	best := 0
	for _, s := range f.Sources {
		if best == 0 || s.Rank < best {
			best = s.Rank
		}
	}
	return best
}

// RetrievalRequest is the orchestrator input.
type RetrievalRequest struct {
	Query    string
	Strategy Strategy
	TopK     int
	Filter   SearchFilter
	// Weights overrides per-source fusion weights; absent sources keep their
	// configured weight.
	Weights map[Source]float64
}

// RetrievalResult carries fused candidates plus degraded-source metadata.
type RetrievalResult struct {
	Results  []FusedResult `json:"results"`
	Degraded []Source      `json:"degraded_sources,omitempty"`
}

// RelationTriple is one graph edge rendered into graph-augmented context.
type RelationTriple struct {
	SourceEntity string `json:"source"`
	Relation     string `json:"relation"`
	TargetEntity string `json:"target"`
}

// Snippet is one packed context entry.
type Snippet struct {
	ItemID string
	Title  string
	Text   string
}

// ContextWindow is the budget-bounded snippet sequence fed to generation.
// Built fresh per query and discarded with the answer.
type ContextWindow struct {
	Snippets []Snippet
	Triples  []RelationTriple
	Summary  string
	Size     int
}

// SourceAttribution cites one snippet the generator actually saw.
type SourceAttribution struct {
	ItemID  string  `json:"item_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Answer is the final generated result with truthful attribution.
type Answer struct {
	Text           string              `json:"text"`
	Sources        []SourceAttribution `json:"sources"`
	Degraded       []Source            `json:"degraded_sources,omitempty"`
	Strategy       Strategy            `json:"strategy"`
	Mode           AnswerMode          `json:"mode"`
	ConversationID string              `json:"conversation_id,omitempty"`
}

// AnswerRequest is the single inbound contract for question answering.
type AnswerRequest struct {
	Question        string
	KnowledgeBaseID string
	Strategy        Strategy
	Mode            AnswerMode
	TopK            int
	Weights         map[Source]float64
	ConversationID  string
}
