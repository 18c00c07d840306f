package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dkoval/knowbase/internal/core/domain"
	"github.com/dkoval/knowbase/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Generator is the outbound answer/summary generation adapter.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Generate(ctx context.Context, prompt, systemInstructions string) (string, error) {
	reqBody := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	}
	if systemInstructions != "" {
		reqBody["system"] = systemInstructions
	}
	return g.client.generate(ctx, reqBody)
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.postJSONResilient(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Extractor pulls entities and relation triples out of chunked document text
// via JSON-constrained generation.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) ExtractEntities(ctx context.Context, text string) (domain.EntityGraph, error) {
	reqBody := map[string]any{
		"model":  e.client.genModel,
		"prompt": buildEntityPrompt(text),
		"stream": false,
		"format": "json",
	}
	respText, err := e.client.generate(ctx, reqBody)
	if err != nil {
		return domain.EntityGraph{}, err
	}

	var parsed struct {
		Entities []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"entities"`
		Relations []struct {
			Source   string `json:"source"`
			Target   string `json:"target"`
			Relation string `json:"relation"`
		} `json:"relations"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.EntityGraph{}, fmt.Errorf("parse entity extraction json: %w", err)
	}

	graph := domain.EntityGraph{}
	seen := make(map[string]bool)
	for _, entity := range parsed.Entities {
		name := strings.TrimSpace(entity.Name)
		if name == "" {
			continue
		}
		id := entitySlug(name)
		if seen[id] {
			continue
		}
		seen[id] = true
		graph.Entities = append(graph.Entities, domain.Entity{
			ID:   id,
			Name: name,
			Type: strings.TrimSpace(entity.Type),
		})
	}
	for _, relation := range parsed.Relations {
		sourceID := entitySlug(relation.Source)
		targetID := entitySlug(relation.Target)
		if !seen[sourceID] || !seen[targetID] || relation.Relation == "" {
			continue
		}
		graph.Relations = append(graph.Relations, domain.RelationTriple{
			SourceEntity: sourceID,
			Relation:     strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(relation.Relation), " ", "_")),
			TargetEntity: targetID,
		})
	}
	return graph, nil
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSONResilient(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// entitySlug is the stable node identity: extraction across documents maps
// the same entity name to the same graph node.
func entitySlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return '_'
		default:
			return r
		}
	}, slug)
	return slug
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
