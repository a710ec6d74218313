package repository

import (
	"context"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MentionRepository handles database operations for citation mentions
type MentionRepository struct {
	db *pgxpool.Pool
}

// NewMentionRepository creates a new mention repository
func NewMentionRepository(db *pgxpool.Pool) *MentionRepository {
	return &MentionRepository{db: db}
}

// Upsert stores a mention keyed by its idempotency key. Re-running a
// detection pass over identical text hits the key and leaves the original
// row untouched, which keeps retries idempotent.
func (r *MentionRepository) Upsert(ctx context.Context, mention *models.Mention) error {
	query := `
		INSERT INTO citation_mentions (
			text_id, match_type, match_text, position, confidence,
			resolved, instrument_id, unit_id, candidates, idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = EXCLUDED.idempotency_key
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		mention.TextID,
		mention.MatchType,
		mention.MatchText,
		mention.Position,
		mention.Confidence,
		mention.Resolved,
		mention.InstrumentID,
		mention.UnitID,
		mention.Candidates,
		mention.IdempotencyKey,
	).Scan(&mention.ID, &mention.CreatedAt)
}

// ListByTextID retrieves all mentions for a text ordered by position
func (r *MentionRepository) ListByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Mention, error) {
	query := `
		SELECT id, text_id, match_type, match_text, position, confidence,
			resolved, instrument_id, unit_id, candidates, created_at
		FROM citation_mentions
		WHERE text_id = $1
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, textID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mentions []*models.Mention
	for rows.Next() {
		mention := &models.Mention{}
		err := rows.Scan(
			&mention.ID,
			&mention.TextID,
			&mention.MatchType,
			&mention.MatchText,
			&mention.Position,
			&mention.Confidence,
			&mention.Resolved,
			&mention.InstrumentID,
			&mention.UnitID,
			&mention.Candidates,
			&mention.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, mention)
	}

	return mentions, rows.Err()
}
