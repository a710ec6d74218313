package repository

import (
	"context"
	"fmt"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertRepository handles database operations for refutation alerts
type AlertRepository struct {
	db *pgxpool.Pool
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create stores an alert
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (claim_id, text_id, incident_id, severity, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		alert.ClaimID,
		alert.TextID,
		alert.IncidentID,
		alert.Severity,
		alert.Message,
	).Scan(&alert.ID, &alert.CreatedAt)
}

// List retrieves alerts, optionally scoped to an incident, newest first
func (r *AlertRepository) List(ctx context.Context, incidentID *uuid.UUID, limit int) ([]*models.Alert, error) {
	query := `
		SELECT id, claim_id, text_id, incident_id, severity, message, created_at
		FROM alerts`

	args := []interface{}{}
	if incidentID != nil {
		query += ` WHERE incident_id = $1`
		args = append(args, *incidentID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert := &models.Alert{}
		err := rows.Scan(
			&alert.ID,
			&alert.ClaimID,
			&alert.TextID,
			&alert.IncidentID,
			&alert.Severity,
			&alert.Message,
			&alert.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}

	return alerts, rows.Err()
}
