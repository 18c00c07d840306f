package ollama

func buildEntityPrompt(text string) string {
	const maxSnippet = 6000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You are an entity extraction engine for a knowledge base.
Return a strict JSON object with keys:
entities (array of {name, type}), relations (array of {source, target, relation}).
Relation source/target must repeat an extracted entity name exactly.
No markdown, no extra keys.

Text:
` + snippet
}
