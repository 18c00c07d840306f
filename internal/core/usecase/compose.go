package usecase

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/core/ports"
)

const (
	defaultContextBudget    = 6000
	defaultGraphHops        = 2
	attributionSnippetChars = 300
)

// ComposerConfig bounds the context window and the graph expansion.
type ComposerConfig struct {
	// MaxContextChars is the packing budget counted over snippet text.
	MaxContextChars int
	// GraphHops bounds the neighborhood depth in graph-augmented mode.
	GraphHops int
	// SummaryInstructions overrides the contextual-mode summarization
	// instructions when non-empty.
	SummaryInstructions string
}

// Composer assembles a budget-bounded context from fused results, applies the
// selected answer mode and produces the generation call plus a source list
// that is truthful to what the generator actually saw.
type Composer struct {
	generator ports.AnswerGenerator
	cfg       ComposerConfig
}

func NewComposer(generator ports.AnswerGenerator, cfg ComposerConfig) *Composer {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaultContextBudget
	}
	if cfg.GraphHops <= 0 {
		cfg.GraphHops = defaultGraphHops
	}
	return &Composer{generator: generator, cfg: cfg}
}

// Composed is the generation output before conversation bookkeeping.
type Composed struct {
	Text    string
	Sources []domain.SourceAttribution
	// GraphDegraded is set when graph expansion failed and the answer was
	// produced from snippets alone.
	GraphDegraded bool
}

func (c *Composer) Compose(
	ctx context.Context,
	question string,
	mode domain.AnswerMode,
	fused []domain.FusedResult,
	graph ports.GraphStore,
	filter domain.SearchFilter,
) (*Composed, error) {
	window, err := c.packContext(fused)
	if err != nil {
		return nil, err
	}

	out := &Composed{}

	switch mode {
	case domain.ModeNaive:
	case domain.ModeContextual:
		// Nothing retrieved means nothing to condense; skip the extra call.
		if len(window.Snippets) > 0 {
			summary, err := c.generator.Generate(ctx, buildSummaryPrompt(window), c.summaryInstructions())
			if err != nil {
				return nil, &domain.GenerationError{Operation: "summarize context", Context: renderSnippets(window.Snippets), Err: err}
			}
			window.Summary = summary
		}
	case domain.ModeGraphAugmented:
		if graph == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "compose", errors.New("graph-augmented mode requires a graph store"))
		}
		triples, err := graph.Neighbors(ctx, graphEntityIDs(fused), c.cfg.GraphHops, filter)
		if err != nil {
			slog.Warn("graph_expansion_degraded", "error", err)
			out.GraphDegraded = true
		} else {
			window.Triples = triples
		}
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "compose", errors.New("unknown answer mode"))
	}

	prompt := buildAnswerPrompt(question, window)
	text, err := c.generator.Generate(ctx, prompt, answerInstructions)
	if err != nil {
		return nil, &domain.GenerationError{Operation: "generate answer", Context: prompt, Err: err}
	}

	out.Text = text
	out.Sources = attributions(window, fused)
	return out, nil
}

// packContext adds whole snippets in fused-rank order and stops at the first
// snippet that would overflow the budget; a partially truncated snippet is
// never fed to the generator. An empty fused list is a valid "no matches"
// outcome and packs an empty window; ErrContextTooSmall is reserved for a
// budget that cannot fit even one of the snippets that did exist.
func (c *Composer) packContext(fused []domain.FusedResult) (domain.ContextWindow, error) {
	window := domain.ContextWindow{}
	nonEmpty := 0
	for _, result := range fused {
		text := result.Payload.Text
		if text == "" {
			continue
		}
		nonEmpty++
		if window.Size+len(text) > c.cfg.MaxContextChars {
			break
		}
		window.Snippets = append(window.Snippets, domain.Snippet{
			ItemID: result.ItemID,
			Title:  result.Payload.Title,
			Text:   text,
		})
		window.Size += len(text)
	}
	if len(window.Snippets) == 0 && nonEmpty > 0 {
		return window, domain.WrapError(domain.ErrContextTooSmall, "pack context", errors.New("no snippet fits the configured budget"))
	}
	return window, nil
}

func (c *Composer) summaryInstructions() string {
	if c.cfg.SummaryInstructions != "" {
		return c.cfg.SummaryInstructions
	}
	return defaultSummaryInstructions
}

// attributions lists only items whose payload made it into the packed
// context, in packed order.
func attributions(window domain.ContextWindow, fused []domain.FusedResult) []domain.SourceAttribution {
	scores := make(map[string]float64, len(fused))
	for _, f := range fused {
		scores[f.ItemID] = f.Score
	}

	out := make([]domain.SourceAttribution, 0, len(window.Snippets))
	for _, snippet := range window.Snippets {
		text := truncateRuneSafe(snippet.Text, attributionSnippetChars)
		out = append(out, domain.SourceAttribution{
			ItemID:  snippet.ItemID,
			Title:   snippet.Title,
			Snippet: text,
			Score:   scores[snippet.ItemID],
		})
	}
	return out
}

// truncateRuneSafe cuts text to at most max bytes without splitting a
// multibyte rune, so attribution snippets stay valid UTF-8.
func truncateRuneSafe(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// graphEntityIDs collects ids of fused results the graph source contributed,
// the anchors for neighborhood expansion.
func graphEntityIDs(fused []domain.FusedResult) []string {
	out := make([]string, 0)
	for _, result := range fused {
		for _, s := range result.Sources {
			if s.Source == domain.SourceGraph {
				out = append(out, result.ItemID)
				break
			}
		}
	}
	return out
}
