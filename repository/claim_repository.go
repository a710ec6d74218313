package repository

import (
	"context"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClaimRepository handles database operations for verification claims
type ClaimRepository struct {
	db *pgxpool.Pool
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Create stores a claim with status pending. Keyed by idempotency key so
// rebuilding claims for the same text is a no-op for already-stored claims.
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO verification_claims (
			text_id, incident_id, user_id, claim_type, claim_text,
			unit_refs, risk_level, status, source_basis, idempotency_key
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (idempotency_key) DO UPDATE SET updated_at = NOW()
		RETURNING id, status, created_at, updated_at`

	return r.db.QueryRow(
		ctx, query,
		claim.TextID,
		claim.IncidentID,
		claim.UserID,
		claim.ClaimType,
		claim.ClaimText,
		claim.UnitRefs,
		claim.RiskLevel,
		claim.Status,
		claim.SourceBasis,
		claim.IdempotencyKey,
	).Scan(&claim.ID, &claim.Status, &claim.CreatedAt, &claim.UpdatedAt)
}

// GetByID retrieves a claim by ID
func (r *ClaimRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	query := `
		SELECT id, text_id, incident_id, user_id, claim_type, claim_text,
			unit_refs, risk_level, status, source_basis, created_at, updated_at
		FROM verification_claims
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// ListByIDs retrieves claims by explicit id list
func (r *ClaimRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Claim, error) {
	query := `
		SELECT id, text_id, incident_id, user_id, claim_type, claim_text,
			unit_refs, risk_level, status, source_basis, created_at, updated_at
		FROM verification_claims
		WHERE id = ANY($1)
		ORDER BY created_at`

	return r.list(ctx, query, ids)
}

// ListPendingByTextID retrieves pending claims for a text
func (r *ClaimRepository) ListPendingByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Claim, error) {
	query := `
		SELECT id, text_id, incident_id, user_id, claim_type, claim_text,
			unit_refs, risk_level, status, source_basis, created_at, updated_at
		FROM verification_claims
		WHERE text_id = $1 AND status = 'pending'
		ORDER BY created_at`

	return r.list(ctx, query, textID)
}

// ListPendingByIncidentID retrieves pending claims for an incident
func (r *ClaimRepository) ListPendingByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Claim, error) {
	query := `
		SELECT id, text_id, incident_id, user_id, claim_type, claim_text,
			unit_refs, risk_level, status, source_basis, created_at, updated_at
		FROM verification_claims
		WHERE incident_id = $1 AND status = 'pending'
		ORDER BY created_at`

	return r.list(ctx, query, incidentID)
}

// UpdateStatus updates a claim's verification status
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ClaimStatus) error {
	query := `
		UPDATE verification_claims SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, status)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ClaimRepository) scanOne(row rowScanner) (*models.Claim, error) {
	claim := &models.Claim{}
	err := row.Scan(
		&claim.ID,
		&claim.TextID,
		&claim.IncidentID,
		&claim.UserID,
		&claim.ClaimType,
		&claim.ClaimText,
		&claim.UnitRefs,
		&claim.RiskLevel,
		&claim.Status,
		&claim.SourceBasis,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func (r *ClaimRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Claim, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}
