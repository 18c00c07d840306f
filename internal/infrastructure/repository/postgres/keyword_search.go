package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dkoval/knowbase/internal/core/domain"
)

// KeywordSearch is the sparse side of hybrid retrieval: chunk text in a
// tsvector-backed table, ranked with ts_rank. It is also the keyword index
// write path fed by document processing.
type KeywordSearch struct {
	db *sql.DB
}

func NewKeywordSearch(db *sql.DB) *KeywordSearch {
	return &KeywordSearch{db: db}
}

func (s *KeywordSearch) Source() domain.Source { return domain.SourceKeyword }

// IndexChunks replaces the document's chunk rows. Reprocessing a document
// must never leave stale chunks behind.
func (s *KeywordSearch) IndexChunks(ctx context.Context, doc *domain.Document, chunks []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_chunks (document_id, chunk_index, kb_id, title, content)
VALUES ($1,$2,$3,$4,$5)
`, doc.ID, i, doc.KnowledgeBaseID, doc.Title, chunk)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func (s *KeywordSearch) Retrieve(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	args := []any{query, topK}
	sqlQuery := `
SELECT document_id, chunk_index, title, content,
	ts_rank(content_tsv, plainto_tsquery('simple', $1)) AS rank
FROM document_chunks
WHERE content_tsv @@ plainto_tsquery('simple', $1)
`
	if filter.KnowledgeBaseID != "" {
		sqlQuery += ` AND kb_id = $3`
		args = append(args, filter.KnowledgeBaseID)
	}
	sqlQuery += `
ORDER BY rank DESC
LIMIT $2
`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "keyword search", err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, topK)
	for rows.Next() {
		var (
			documentID string
			chunkIndex int
			title      string
			content    string
			rank       float64
		)
		if err := rows.Scan(&documentID, &chunkIndex, &title, &content, &rank); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		out = append(out, domain.Candidate{
			ItemID:   documentID + ":" + strconv.Itoa(chunkIndex),
			Source:   domain.SourceKeyword,
			RawScore: rank,
			Rank:     len(out) + 1,
			Payload: domain.Payload{
				DocumentID: documentID,
				Title:      title,
				ChunkIndex: chunkIndex,
				Text:       content,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "keyword search rows", err)
	}
	return out, nil
}
