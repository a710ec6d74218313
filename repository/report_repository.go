package repository

import (
	"context"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository handles database operations for verification reports
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores one verification report. Reports are append-only; a
// re-verified claim simply accumulates more rows.
func (r *ReportRepository) Create(ctx context.Context, report *models.VerificationReport) error {
	query := `
		INSERT INTO verification_reports (
			claim_id, verdict, confidence, evidence, diff_summary, severity, diagnostic, provider
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		report.ClaimID,
		report.Verdict,
		report.Confidence,
		report.Evidence,
		report.DiffSummary,
		report.Severity,
		report.Diagnostic,
		report.Provider,
	).Scan(&report.ID, &report.CreatedAt)
}

// ListByClaimID retrieves all reports for a claim, most recent first
func (r *ReportRepository) ListByClaimID(ctx context.Context, claimID uuid.UUID) ([]*models.VerificationReport, error) {
	query := `
		SELECT id, claim_id, verdict, confidence, evidence, diff_summary, severity, diagnostic, provider, created_at
		FROM verification_reports
		WHERE claim_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.VerificationReport
	for rows.Next() {
		report := &models.VerificationReport{}
		err := rows.Scan(
			&report.ID,
			&report.ClaimID,
			&report.Verdict,
			&report.Confidence,
			&report.Evidence,
			&report.DiffSummary,
			&report.Severity,
			&report.Diagnostic,
			&report.Provider,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}
