package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexaudit-backend/models"

	"github.com/google/uuid"
)

// CorpusService exposes the read-only query surface of the legal corpus
type CorpusService struct {
	corpus CorpusResolver
}

// CorpusServiceOption is a functional option for CorpusService
type CorpusServiceOption func(*CorpusService)

// CorpusWithRepository sets the corpus resolver
func CorpusWithRepository(corpus CorpusResolver) CorpusServiceOption {
	return func(s *CorpusService) {
		s.corpus = corpus
	}
}

// NewCorpusService creates a new corpus service
func NewCorpusService(opts ...CorpusServiceOption) *CorpusService {
	s := &CorpusService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search lists instruments matching free text, domain tag and jurisdiction
func (s *CorpusService) Search(ctx context.Context, query, domain, jurisdiction string) ([]models.Instrument, error) {
	if s.corpus == nil {
		return nil, errors.New("corpus repository not set")
	}
	return s.corpus.SearchInstruments(ctx, query, domain, jurisdiction)
}

// GetUnit retrieves a unit of an instrument by citation key. With a nil date
// the current version answers; with a date the version valid on that date
// answers, so past correspondence can be checked against the law of its day.
func (s *CorpusService) GetUnit(ctx context.Context, instrumentID uuid.UUID, citationKey string, asOf *time.Time) (*models.Unit, error) {
	if s.corpus == nil {
		return nil, errors.New("corpus repository not set")
	}

	instrument, err := s.corpus.GetInstrumentByID(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument: %w", err)
	}
	if instrument == nil {
		return nil, ErrInstrumentNotFound
	}

	var version *models.Version
	if asOf != nil {
		version, err = s.corpus.GetVersionAt(ctx, instrumentID, *asOf)
	} else {
		version, err = s.corpus.GetCurrentVersion(ctx, instrumentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	if version == nil {
		return nil, ErrUnitNotFound
	}

	unit, err := s.corpus.GetUnitByCitationKey(ctx, version.ID, citationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit: %w", err)
	}
	if unit == nil {
		return nil, ErrUnitNotFound
	}
	return unit, nil
}

// ResolveStatus answers whether an instrument is still good law. For a
// repealed or superseded instrument the replacement chain is walked to its
// end; a chain that revisits an instrument terminates with
// ErrReplacementCycle instead of looping.
func (s *CorpusService) ResolveStatus(ctx context.Context, instrumentID uuid.UUID) (*models.StatusResolution, error) {
	if s.corpus == nil {
		return nil, errors.New("corpus repository not set")
	}

	start, err := s.corpus.GetInstrumentByID(ctx, instrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instrument: %w", err)
	}
	if start == nil {
		return nil, ErrInstrumentNotFound
	}

	resolution := &models.StatusResolution{
		InstrumentID: start.ID,
		Status:       start.Status,
		Chain:        []uuid.UUID{start.ID},
	}

	current := start
	visited := map[uuid.UUID]bool{start.ID: true}

	for current.ReplacedBy != nil {
		nextID := *current.ReplacedBy
		if visited[nextID] {
			return nil, fmt.Errorf("%w: instrument %s revisited", ErrReplacementCycle, nextID)
		}
		visited[nextID] = true

		next, err := s.corpus.GetInstrumentByID(ctx, nextID)
		if err != nil {
			return nil, fmt.Errorf("failed to walk replacement chain: %w", err)
		}
		if next == nil {
			// Dangling pointer: stop at the last instrument that exists
			break
		}
		resolution.Chain = append(resolution.Chain, next.ID)
		current = next
	}

	// A repealed instrument with no replacement resolves to itself; callers
	// see the repealed status and decide what to surface.
	resolution.CurrentID = current.ID
	resolution.CurrentStatus = current.Status
	return resolution, nil
}
