package usecase

import (
	"fmt"
	"strings"

	"github.com/dkoval/knowbase/internal/core/domain"
)

const answerInstructions = `You are a knowledge-base assistant.
Answer the user question only from the provided context.
If the context is insufficient, say so directly. Do not invent sources.`

const defaultSummaryInstructions = `You are a summarization assistant.
Condense the provided document excerpts into a short factual summary.
Keep names, numbers and relations exact. No preamble.`

func buildAnswerPrompt(question string, window domain.ContextWindow) string {
	var b strings.Builder

	if window.Summary != "" {
		b.WriteString("Summary:\n")
		b.WriteString(window.Summary)
		b.WriteString("\n\n")
	}
	if len(window.Triples) > 0 {
		b.WriteString("Knowledge Graph Context:\n")
		for _, t := range window.Triples {
			fmt.Fprintf(&b, "%s -[%s]-> %s\n", t.SourceEntity, t.Relation, t.TargetEntity)
		}
		b.WriteString("\n")
	}

	b.WriteString("Context:\n")
	b.WriteString(renderSnippets(window.Snippets))
	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	return b.String()
}

func buildSummaryPrompt(window domain.ContextWindow) string {
	return "Excerpts:\n" + renderSnippets(window.Snippets)
}

func renderSnippets(snippets []domain.Snippet) string {
	var b strings.Builder
	for i, s := range snippets {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, s.Title, s.Text)
	}
	return b.String()
}
