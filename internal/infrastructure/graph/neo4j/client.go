package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/dkoval/knowbase/internal/core/domain"
)

// Client stores the entity graph extracted during document processing and
// serves both graph retrieval and neighborhood expansion. Entities carry a
// kb_id property so every query stays inside one knowledge base.
type Client struct {
	driver neo4j.DriverWithContext
}

func New(ctx context.Context, uri, user, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	c := &Client{driver: driver}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Source() domain.Source { return domain.SourceGraph }

func (c *Client) ensureIndexes(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	statements := []string{
		`CREATE INDEX entity_id IF NOT EXISTS FOR (e:Entity) ON (e.id)`,
		`CREATE INDEX entity_kb IF NOT EXISTS FOR (e:Entity) ON (e.kb_id)`,
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Retrieve matches entities by name or type substring. Raw scores are rank
// derived; Cypher CONTAINS has no native relevance score.
func (c *Client) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (e:Entity)
WHERE ($kb_id = '' OR e.kb_id = $kb_id)
  AND (toLower(e.name) CONTAINS toLower($query) OR toLower(e.type) CONTAINS toLower($query))
RETURN e.id AS id, e.name AS name, e.type AS type, e.document_id AS document_id
LIMIT $limit
`, map[string]any{
			"kb_id": filter.KnowledgeBaseID,
			"query": query,
			"limit": topK,
		})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "graph entity search", err)
	}

	rows := records.([]*neo4j.Record)
	out := make([]domain.Candidate, 0, len(rows))
	for i, record := range rows {
		id := stringValue(record, "id")
		name := stringValue(record, "name")
		entityType := stringValue(record, "type")
		out = append(out, domain.Candidate{
			ItemID:   id,
			Source:   domain.SourceGraph,
			RawScore: 1.0 / float64(1+i),
			Rank:     i + 1,
			Payload: domain.Payload{
				DocumentID: stringValue(record, "document_id"),
				Title:      name,
				Text:       fmt.Sprintf("%s (%s)", name, entityType),
			},
		})
	}
	return out, nil
}

// Neighbors walks relation paths up to hops edges out from the anchor
// entities and returns the traversed edges as triples.
func (c *Client) Neighbors(ctx context.Context, entityIDs []string, hops int, filter domain.SearchFilter) ([]domain.RelationTriple, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if hops <= 0 {
		hops = 1
	}

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	// Cypher forbids parameterized path bounds, so hops is formatted in; it
	// comes from configuration, never from request input.
	query := fmt.Sprintf(`
MATCH (a:Entity)-[rels:RELATION*1..%d]-(b:Entity)
WHERE a.id IN $ids AND ($kb_id = '' OR a.kb_id = $kb_id)
UNWIND rels AS r
WITH DISTINCT startNode(r) AS s, r, endNode(r) AS t
RETURN s.name AS source, r.type AS relation, t.name AS target
LIMIT 100
`, hops)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{
			"ids":   entityIDs,
			"kb_id": filter.KnowledgeBaseID,
		})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graph neighbors query: %w", err)
	}

	rows := records.([]*neo4j.Record)
	out := make([]domain.RelationTriple, 0, len(rows))
	for _, record := range rows {
		out = append(out, domain.RelationTriple{
			SourceEntity: stringValue(record, "source"),
			Relation:     stringValue(record, "relation"),
			TargetEntity: stringValue(record, "target"),
		})
	}
	return out, nil
}

// UpsertGraph merges the extracted entities and relations. Re-processing a
// document updates nodes in place instead of duplicating them.
func (c *Client) UpsertGraph(ctx context.Context, kbID, documentID string, graph domain.EntityGraph) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, entity := range graph.Entities {
			_, err := tx.Run(ctx, `
MERGE (e:Entity {id: $id})
SET e.kb_id = $kb_id,
    e.document_id = $document_id,
    e.name = $name,
    e.type = $type,
    e.updated_at = datetime()
`, map[string]any{
				"id":          entity.ID,
				"kb_id":       kbID,
				"document_id": documentID,
				"name":        entity.Name,
				"type":        entity.Type,
			})
			if err != nil {
				return nil, fmt.Errorf("merge entity %s: %w", entity.ID, err)
			}
		}

		for _, relation := range graph.Relations {
			_, err := tx.Run(ctx, `
MATCH (s:Entity {id: $source_id})
MATCH (t:Entity {id: $target_id})
MERGE (s)-[r:RELATION {type: $type}]->(t)
SET r.kb_id = $kb_id,
    r.updated_at = datetime()
`, map[string]any{
				"source_id": relation.SourceEntity,
				"target_id": relation.TargetEntity,
				"type":      relation.Relation,
				"kb_id":     kbID,
			})
			if err != nil {
				return nil, fmt.Errorf("merge relation %s-%s: %w", relation.SourceEntity, relation.TargetEntity, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("upsert entity graph: %w", err)
	}
	return nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}
