package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dkoval/knowbase/internal/core/domain"
)

const defaultTurnLimit = 50

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.ConversationTurn) error {
	sourcesJSON, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (id, conversation_id, kb_id, question, answer, sources, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		turn.ID, turn.ConversationID, turn.KnowledgeBaseID, turn.Question, turn.Answer, sourcesJSON, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListTurns(ctx context.Context, conversationID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = defaultTurnLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, kb_id, question, answer, sources, created_at
FROM conversation_turns
WHERE conversation_id = $1
ORDER BY created_at ASC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		var sourcesRaw []byte
		if err := rows.Scan(
			&turn.ID, &turn.ConversationID, &turn.KnowledgeBaseID,
			&turn.Question, &turn.Answer, &sourcesRaw, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		if err := json.Unmarshal(sourcesRaw, &turn.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation turns: %w", err)
	}
	return out, nil
}
