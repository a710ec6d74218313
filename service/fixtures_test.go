package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sort"
	"strings"
	"time"

	"lexaudit-backend/llm"
	"lexaudit-backend/models"
	"lexaudit-backend/repository"

	"github.com/google/uuid"
)

var errDown = errors.New("connection refused")

// fakeCorpus is an in-memory CorpusResolver with the same absence semantics
// as the pgx repository: (nil, nil) when nothing matches.
type fakeCorpus struct {
	instruments map[uuid.UUID]*models.Instrument
	byAbbr      map[string]*models.Instrument
	versions    map[uuid.UUID][]*models.Version       // instrument id -> versions
	units       map[uuid.UUID]map[string]*models.Unit // version id -> lower(key) -> unit
	canonical   map[uuid.UUID]repository.CanonicalUnit
	down        bool
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{
		instruments: make(map[uuid.UUID]*models.Instrument),
		byAbbr:      make(map[string]*models.Instrument),
		versions:    make(map[uuid.UUID][]*models.Version),
		units:       make(map[uuid.UUID]map[string]*models.Unit),
		canonical:   make(map[uuid.UUID]repository.CanonicalUnit),
	}
}

func (f *fakeCorpus) addInstrument(abbreviation, title string, status models.InstrumentStatus, domains ...string) *models.Instrument {
	inst := &models.Instrument{
		ID:           uuid.New(),
		Jurisdiction: "VD",
		Title:        title,
		Abbreviation: abbreviation,
		DomainTags:   domains,
		Status:       status,
	}
	f.instruments[inst.ID] = inst
	f.byAbbr[abbreviation] = inst
	return inst
}

func (f *fakeCorpus) addVersion(inst *models.Instrument, validFrom time.Time, validTo *time.Time) *models.Version {
	version := &models.Version{
		ID:           uuid.New(),
		InstrumentID: inst.ID,
		Ordinal:      len(f.versions[inst.ID]) + 1,
		Status:       models.VersionCurrent,
		ValidFrom:    validFrom,
		ValidTo:      validTo,
	}
	if validTo != nil {
		version.Status = models.VersionArchived
	}
	f.versions[inst.ID] = append(f.versions[inst.ID], version)
	f.units[version.ID] = make(map[string]*models.Unit)
	return version
}

func (f *fakeCorpus) addUnit(inst *models.Instrument, version *models.Version, citationKey, content string) *models.Unit {
	hash := sha256.Sum256([]byte(content))
	unit := &models.Unit{
		ID:          uuid.New(),
		VersionID:   version.ID,
		CitationKey: citationKey,
		UnitType:    "article",
		Content:     content,
		ContentHash: hex.EncodeToString(hash[:]),
	}
	f.units[version.ID][strings.ToLower(citationKey)] = unit
	f.canonical[unit.ID] = repository.CanonicalUnit{
		Unit:         *unit,
		InstrumentID: inst.ID,
		Abbreviation: inst.Abbreviation,
		SourceURL:    inst.SourceURL,
	}
	return unit
}

func (f *fakeCorpus) GetInstrumentByID(ctx context.Context, id uuid.UUID) (*models.Instrument, error) {
	if f.down {
		return nil, errDown
	}
	return f.instruments[id], nil
}

func (f *fakeCorpus) GetInstrumentByAbbreviation(ctx context.Context, abbreviation string, status *models.InstrumentStatus) (*models.Instrument, error) {
	if f.down {
		return nil, errDown
	}
	inst, ok := f.byAbbr[abbreviation]
	if !ok {
		return nil, nil
	}
	if status != nil && inst.Status != *status {
		return nil, nil
	}
	return inst, nil
}

func (f *fakeCorpus) SearchInstruments(ctx context.Context, query, domain, jurisdiction string) ([]models.Instrument, error) {
	if f.down {
		return nil, errDown
	}
	var out []models.Instrument
	for _, inst := range f.instruments {
		if query != "" &&
			!strings.Contains(strings.ToLower(inst.Title), strings.ToLower(query)) &&
			!strings.Contains(strings.ToLower(inst.Abbreviation), strings.ToLower(query)) {
			continue
		}
		if domain != "" && !contains(inst.DomainTags, domain) {
			continue
		}
		if jurisdiction != "" && inst.Jurisdiction != jurisdiction {
			continue
		}
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out, nil
}

func (f *fakeCorpus) ListInstrumentsByDomain(ctx context.Context, domain string) ([]models.Instrument, error) {
	if f.down {
		return nil, errDown
	}
	var out []models.Instrument
	for _, inst := range f.instruments {
		if inst.Status == models.InstrumentInForce && contains(inst.DomainTags, domain) {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out, nil
}

func (f *fakeCorpus) GetCurrentVersion(ctx context.Context, instrumentID uuid.UUID) (*models.Version, error) {
	if f.down {
		return nil, errDown
	}
	for _, version := range f.versions[instrumentID] {
		if version.ValidTo == nil {
			return version, nil
		}
	}
	return nil, nil
}

func (f *fakeCorpus) GetVersionAt(ctx context.Context, instrumentID uuid.UUID, at time.Time) (*models.Version, error) {
	if f.down {
		return nil, errDown
	}
	for _, version := range f.versions[instrumentID] {
		if !version.ValidFrom.After(at) && (version.ValidTo == nil || version.ValidTo.After(at)) {
			return version, nil
		}
	}
	return nil, nil
}

func (f *fakeCorpus) GetUnitByCitationKey(ctx context.Context, versionID uuid.UUID, citationKey string) (*models.Unit, error) {
	if f.down {
		return nil, errDown
	}
	return f.units[versionID][strings.ToLower(citationKey)], nil
}

func (f *fakeCorpus) GetCanonicalUnits(ctx context.Context, unitIDs []uuid.UUID) ([]repository.CanonicalUnit, error) {
	if f.down {
		return nil, errDown
	}
	var out []repository.CanonicalUnit
	for _, id := range unitIDs {
		if cu, ok := f.canonical[id]; ok {
			out = append(out, cu)
		}
	}
	return out, nil
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// fakeMentionStore keys mentions by idempotency key, like the unique index
type fakeMentionStore struct {
	byKey map[string]*models.Mention
	down  bool
}

func newFakeMentionStore() *fakeMentionStore {
	return &fakeMentionStore{byKey: make(map[string]*models.Mention)}
}

func (f *fakeMentionStore) Upsert(ctx context.Context, mention *models.Mention) error {
	if f.down {
		return errDown
	}
	if existing, ok := f.byKey[mention.IdempotencyKey]; ok {
		mention.ID = existing.ID
		mention.CreatedAt = existing.CreatedAt
	} else {
		mention.ID = uuid.New()
		mention.CreatedAt = time.Now()
	}
	copied := *mention
	f.byKey[mention.IdempotencyKey] = &copied
	return nil
}

func (f *fakeMentionStore) ListByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Mention, error) {
	if f.down {
		return nil, errDown
	}
	var out []*models.Mention
	for _, mention := range f.byKey {
		if mention.TextID == textID {
			copied := *mention
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// fakeClaimStore mirrors the repository's conflict behavior: creating a
// claim whose idempotency key exists returns the stored row's id and status.
type fakeClaimStore struct {
	byKey map[string]*models.Claim
	down  bool
}

func newFakeClaimStore() *fakeClaimStore {
	return &fakeClaimStore{byKey: make(map[string]*models.Claim)}
}

func (f *fakeClaimStore) Create(ctx context.Context, claim *models.Claim) error {
	if f.down {
		return errDown
	}
	if existing, ok := f.byKey[claim.IdempotencyKey]; ok {
		claim.ID = existing.ID
		claim.Status = existing.Status
		claim.CreatedAt = existing.CreatedAt
		return nil
	}
	claim.ID = uuid.New()
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	copied := *claim
	f.byKey[claim.IdempotencyKey] = &copied
	return nil
}

func (f *fakeClaimStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	if f.down {
		return nil, errDown
	}
	for _, claim := range f.byKey {
		if claim.ID == id {
			copied := *claim
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeClaimStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Claim, error) {
	if f.down {
		return nil, errDown
	}
	var out []*models.Claim
	for _, id := range ids {
		if claim, err := f.GetByID(ctx, id); err == nil && claim != nil {
			out = append(out, claim)
		}
	}
	return out, nil
}

func (f *fakeClaimStore) ListPendingByTextID(ctx context.Context, textID uuid.UUID) ([]*models.Claim, error) {
	if f.down {
		return nil, errDown
	}
	var out []*models.Claim
	for _, claim := range f.byKey {
		if claim.TextID == textID && claim.Status == models.ClaimPending {
			copied := *claim
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimText < out[j].ClaimText })
	return out, nil
}

func (f *fakeClaimStore) ListPendingByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Claim, error) {
	if f.down {
		return nil, errDown
	}
	var out []*models.Claim
	for _, claim := range f.byKey {
		if claim.IncidentID != nil && *claim.IncidentID == incidentID && claim.Status == models.ClaimPending {
			copied := *claim
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeClaimStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ClaimStatus) error {
	if f.down {
		return errDown
	}
	for _, claim := range f.byKey {
		if claim.ID == id {
			claim.Status = status
			claim.UpdatedAt = time.Now()
			return nil
		}
	}
	return errors.New("claim not found")
}

func (f *fakeClaimStore) all() []*models.Claim {
	var out []*models.Claim
	for _, claim := range f.byKey {
		out = append(out, claim)
	}
	return out
}

type fakeReportStore struct {
	reports []*models.VerificationReport
	down    bool
}

func (f *fakeReportStore) Create(ctx context.Context, report *models.VerificationReport) error {
	if f.down {
		return errDown
	}
	report.ID = uuid.New()
	report.CreatedAt = time.Now()
	copied := *report
	f.reports = append(f.reports, &copied)
	return nil
}

func (f *fakeReportStore) ListByClaimID(ctx context.Context, claimID uuid.UUID) ([]*models.VerificationReport, error) {
	if f.down {
		return nil, errDown
	}
	var out []*models.VerificationReport
	for _, report := range f.reports {
		if report.ClaimID == claimID {
			out = append(out, report)
		}
	}
	return out, nil
}

type fakeAlertStore struct {
	alerts []*models.Alert
}

func (f *fakeAlertStore) Create(ctx context.Context, alert *models.Alert) error {
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now()
	copied := *alert
	f.alerts = append(f.alerts, &copied)
	return nil
}

func (f *fakeAlertStore) List(ctx context.Context, incidentID *uuid.UUID, limit int) ([]*models.Alert, error) {
	var out []*models.Alert
	for _, alert := range f.alerts {
		if incidentID != nil && (alert.IncidentID == nil || *alert.IncidentID != *incidentID) {
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}

type fakeTextStore struct {
	texts map[uuid.UUID]*models.Correspondence
}

func newFakeTextStore() *fakeTextStore {
	return &fakeTextStore{texts: make(map[uuid.UUID]*models.Correspondence)}
}

func (f *fakeTextStore) add(subject, body string) *models.Correspondence {
	text := &models.Correspondence{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		Subject:    subject,
		Body:       body,
		ReceivedAt: time.Now(),
	}
	f.texts[text.ID] = text
	return text
}

func (f *fakeTextStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Correspondence, error) {
	return f.texts[id], nil
}

func (f *fakeTextStore) ListByIncidentID(ctx context.Context, incidentID uuid.UUID) ([]*models.Correspondence, error) {
	var out []*models.Correspondence
	for _, text := range f.texts {
		if text.IncidentID != nil && *text.IncidentID == incidentID {
			out = append(out, text)
		}
	}
	return out, nil
}

// fakeProvider answers audits from a programmable function
type fakeProvider struct {
	audit func(req llm.AuditRequest) (*llm.AuditResponse, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Audit(ctx context.Context, req llm.AuditRequest) (*llm.AuditResponse, error) {
	return f.audit(req)
}

type fakeArchive struct {
	puts []string
	fail bool
}

func (f *fakeArchive) Put(ctx context.Context, reportID uuid.UUID, data io.Reader) (string, error) {
	if f.fail {
		return "", errors.New("archive unavailable")
	}
	raw, _ := io.ReadAll(data)
	f.puts = append(f.puts, string(raw))
	return reportID.String() + ".json", nil
}

func (f *fakeArchive) Get(ctx context.Context, archivePath string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeArchive) Delete(ctx context.Context, archivePath string) error {
	return nil
}
