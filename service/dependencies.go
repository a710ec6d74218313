package service

import (
	"context"
	"time"

	"lexaudit-backend/models"
	"lexaudit-backend/repository"

	"github.com/google/uuid"
)

// The services consume their stores through narrow interfaces so the
// pipeline stages can be exercised without a database. The pgx repositories
// satisfy these.

// CorpusResolver is the read surface of the legal corpus
type CorpusResolver interface {
	GetInstrumentByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error)
	GetInstrumentByAbbreviation(ctx context.Context, abbreviation string, status *models.InstrumentStatus) (*models.Instrument, error)
	SearchInstruments(ctx context.Context, query, domain, jurisdiction string) ([]models.Instrument, error)
	ListInstrumentsByDomain(ctx context.Context, domain string) ([]models.Instrument, error)
	GetCurrentVersion(ctx context.Context, instrumentID uuid.UUID) (*models.Version, error)
	GetVersionAt(ctx context.Context, instrumentID uuid.UUID, at time.Time) (*models.Version, error)
	GetUnitByCitationKey(ctx context.Context, versionID uuid.UUID, citationKey string) (*models.Unit, error)
	GetCanonicalUnits(ctx context.Context, unitIDs []uuid.UUID) ([]repository.CanonicalUnit, error)
}

// MentionStore persists citation mentions
type MentionStore interface {
	Upsert(ctx context.Context, mention *models.Mention) error
	ListByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Mention, error)
}

// ClaimStore persists verification claims
type ClaimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Claim, error)
	ListPendingByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Claim, error)
	ListPendingByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Claim, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ClaimStatus) error
}

// ReportStore persists verification reports
type ReportStore interface {
	Create(ctx context.Context, report *models.VerificationReport) error
	ListByClaimID(ctx context.Context, claimID uuid.UUID) ([]*models.VerificationReport, error)
}

// AlertStore persists refutation alerts
type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	List(ctx context.Context, incidentID *uuid.UUID, limit int) ([]*models.Alert, error)
}

// TextStore reads correspondence records
type TextStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Correspondence, error)
	ListByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Correspondence, error)
}
