package repository

import (
	"context"
	"errors"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CorrespondenceRepository handles database operations for correspondence texts
type CorrespondenceRepository struct {
	db *pgxpool.Pool
}

// NewCorrespondenceRepository creates a new correspondence repository
func NewCorrespondenceRepository(db *pgxpool.Pool) *CorrespondenceRepository {
	return &CorrespondenceRepository{db: db}
}

// Create registers a piece of correspondence
func (r *CorrespondenceRepository) Create(ctx context.Context, text *models.Correspondence) error {
	query := `
		INSERT INTO correspondence (user_id, incident_id, subject, body, sender, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		text.UserID,
		text.IncidentID,
		text.Subject,
		text.Body,
		text.Sender,
		text.ReceivedAt,
	).Scan(&text.ID, &text.CreatedAt)
}

// GetByID retrieves a correspondence text by ID. Returns (nil, nil) when no
// row exists so callers can map absence to their own not-found error.
func (r *CorrespondenceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Correspondence, error) {
	query := `
		SELECT id, user_id, incident_id, subject, body, sender, received_at, created_at
		FROM correspondence
		WHERE id = $1`

	text := &models.Correspondence{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&text.ID,
		&text.UserID,
		&text.IncidentID,
		&text.Subject,
		&text.Body,
		&text.Sender,
		&text.ReceivedAt,
		&text.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return text, nil
}

// ListByIncidentID retrieves all texts attached to an incident
func (r *CorrespondenceRepository) ListByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Correspondence, error) {
	query := `
		SELECT id, user_id, incident_id, subject, body, sender, received_at, created_at
		FROM correspondence
		WHERE incident_id = $1
		ORDER BY received_at`

	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []*models.Correspondence
	for rows.Next() {
		text := &models.Correspondence{}
		err := rows.Scan(
			&text.ID,
			&text.UserID,
			&text.IncidentID,
			&text.Subject,
			&text.Body,
			&text.Sender,
			&text.ReceivedAt,
			&text.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}

	return texts, rows.Err()
}
