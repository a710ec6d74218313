package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CorpusRepository handles read access to the legal corpus: instruments,
// versions and units. Writes happen only through the ingestion tooling.
type CorpusRepository struct {
	db *pgxpool.Pool
}

// NewCorpusRepository creates a new corpus repository
func NewCorpusRepository(db *pgxpool.Pool) *CorpusRepository {
	return &CorpusRepository{db: db}
}

const instrumentColumns = `id, jurisdiction, title, abbreviation, domain_tags, status, replaced_by, source_url, created_at, updated_at`

func scanInstrument(row pgx.Row) (*models.Instrument, error) {
	inst := &models.Instrument{}
	err := row.Scan(
		&inst.ID,
		&inst.Jurisdiction,
		&inst.Title,
		&inst.Abbreviation,
		&inst.DomainTags,
		&inst.Status,
		&inst.ReplacedBy,
		&inst.SourceURL,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// GetInstrumentByID retrieves an instrument by id. Returns (nil, nil) when
// no instrument exists; absence is a normal outcome for resolvers.
func (r *CorpusRepository) GetInstrumentByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM legal_instruments WHERE id = $1`
	inst, err := scanInstrument(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument: %w", err)
	}
	return inst, nil
}

// GetInstrumentByAbbreviation retrieves an instrument by its canonical
// abbreviation, optionally filtered to a lifecycle status. Returns (nil, nil)
// when nothing matches.
func (r *CorpusRepository) GetInstrumentByAbbreviation(
	ctx context.Context,
	abbreviation string,
	status *models.InstrumentStatus,
) (*models.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM legal_instruments WHERE abbreviation = $1`
	args := []interface{}{abbreviation}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}

	inst, err := scanInstrument(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query instrument by abbreviation: %w", err)
	}
	return inst, nil
}

// SearchInstruments searches instruments by free text, domain tag and
// jurisdiction. Empty filters are ignored.
func (r *CorpusRepository) SearchInstruments(
	ctx context.Context,
	query string,
	domain string,
	jurisdiction string,
) ([]models.Instrument, error) {
	sql := `SELECT ` + instrumentColumns + ` FROM legal_instruments WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if query != "" {
		sql += fmt.Sprintf(" AND (title ILIKE $%d OR abbreviation ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+query+"%")
		argIndex++
	}
	if domain != "" {
		sql += fmt.Sprintf(" AND $%d = ANY(domain_tags)", argIndex)
		args = append(args, domain)
		argIndex++
	}
	if jurisdiction != "" {
		sql += fmt.Sprintf(" AND jurisdiction = $%d", argIndex)
		args = append(args, jurisdiction)
		argIndex++
	}

	sql += " ORDER BY abbreviation"

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search instruments: %w", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, *inst)
	}
	return instruments, rows.Err()
}

// ListInstrumentsByDomain lists in-force instruments tagged with a domain
func (r *CorpusRepository) ListInstrumentsByDomain(ctx context.Context, domain string) ([]models.Instrument, error) {
	query := `
		SELECT ` + instrumentColumns + `
		FROM legal_instruments
		WHERE $1 = ANY(domain_tags) AND status = 'in_force'
		ORDER BY abbreviation`

	rows, err := r.db.Query(ctx, query, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to list instruments by domain: %w", err)
	}
	defer rows.Close()

	var instruments []models.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, *inst)
	}
	return instruments, rows.Err()
}

// GetCurrentVersion retrieves the open-ended version of an instrument.
// Returns (nil, nil) when the instrument has no current version.
func (r *CorpusRepository) GetCurrentVersion(ctx context.Context, instrumentID uuid.UUID) (*models.Version, error) {
	query := `
		SELECT id, instrument_id, ordinal, status, valid_from, valid_to, created_at
		FROM instrument_versions
		WHERE instrument_id = $1 AND valid_to IS NULL`

	version := &models.Version{}
	err := r.db.QueryRow(ctx, query, instrumentID).Scan(
		&version.ID,
		&version.InstrumentID,
		&version.Ordinal,
		&version.Status,
		&version.ValidFrom,
		&version.ValidTo,
		&version.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query current version: %w", err)
	}
	return version, nil
}

// GetVersionAt retrieves the version valid at a given date. Intervals are
// half-open: valid_from <= at < valid_to.
func (r *CorpusRepository) GetVersionAt(ctx context.Context, instrumentID uuid.UUID, at time.Time) (*models.Version, error) {
	query := `
		SELECT id, instrument_id, ordinal, status, valid_from, valid_to, created_at
		FROM instrument_versions
		WHERE instrument_id = $1
			AND valid_from <= $2
			AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY valid_from DESC
		LIMIT 1`

	version := &models.Version{}
	err := r.db.QueryRow(ctx, query, instrumentID, at).Scan(
		&version.ID,
		&version.InstrumentID,
		&version.Ordinal,
		&version.Status,
		&version.ValidFrom,
		&version.ValidTo,
		&version.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query version at date: %w", err)
	}
	return version, nil
}

// GetUnitByCitationKey retrieves a unit by citation key within a version.
// Returns (nil, nil) when the version carries no such unit.
func (r *CorpusRepository) GetUnitByCitationKey(ctx context.Context, versionID uuid.UUID, citationKey string) (*models.Unit, error) {
	query := `
		SELECT id, version_id, citation_key, unit_type, content, content_hash, is_key_unit, created_at
		FROM instrument_units
		WHERE version_id = $1 AND lower(citation_key) = lower($2)`

	unit := &models.Unit{}
	err := r.db.QueryRow(ctx, query, versionID, citationKey).Scan(
		&unit.ID,
		&unit.VersionID,
		&unit.CitationKey,
		&unit.UnitType,
		&unit.Content,
		&unit.ContentHash,
		&unit.IsKeyUnit,
		&unit.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query unit: %w", err)
	}
	return unit, nil
}

// CanonicalUnit is a unit joined with its owning instrument, as handed to
// the audit verifier.
type CanonicalUnit struct {
	Unit         models.Unit
	InstrumentID uuid.UUID
	Abbreviation string
	SourceURL    *string
}

// GetCanonicalUnits fetches units by id together with their instrument's
// abbreviation and canonical source URL.
func (r *CorpusRepository) GetCanonicalUnits(ctx context.Context, unitIDs []uuid.UUID) ([]CanonicalUnit, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT u.id, u.version_id, u.citation_key, u.unit_type, u.content, u.content_hash, u.is_key_unit, u.created_at,
			i.id, i.abbreviation, i.source_url
		FROM instrument_units u
		JOIN instrument_versions v ON v.id = u.version_id
		JOIN legal_instruments i ON i.id = v.instrument_id
		WHERE u.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical units: %w", err)
	}
	defer rows.Close()

	var units []CanonicalUnit
	for rows.Next() {
		var cu CanonicalUnit
		err := rows.Scan(
			&cu.Unit.ID,
			&cu.Unit.VersionID,
			&cu.Unit.CitationKey,
			&cu.Unit.UnitType,
			&cu.Unit.Content,
			&cu.Unit.ContentHash,
			&cu.Unit.IsKeyUnit,
			&cu.Unit.CreatedAt,
			&cu.InstrumentID,
			&cu.Abbreviation,
			&cu.SourceURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan canonical unit: %w", err)
		}
		units = append(units, cu)
	}
	return units, rows.Err()
}
