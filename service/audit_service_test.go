package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"lexaudit-backend/llm"
	"lexaudit-backend/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditFixture struct {
	svc      *AuditService
	corpus   *fakeCorpus
	claims   *fakeClaimStore
	reports  *fakeReportStore
	alerts   *fakeAlertStore
	provider *fakeProvider
	archive  *fakeArchive
}

func newAuditFixture(audit func(req llm.AuditRequest) (*llm.AuditResponse, error)) *auditFixture {
	f := &auditFixture{
		corpus:   newFakeCorpus(),
		claims:   newFakeClaimStore(),
		reports:  &fakeReportStore{},
		alerts:   &fakeAlertStore{},
		provider: &fakeProvider{audit: audit},
		archive:  &fakeArchive{},
	}
	f.svc = NewAuditService(
		AuditWithCorpusRepository(f.corpus),
		AuditWithClaimRepository(f.claims),
		AuditWithReportRepository(f.reports),
		AuditWithAlertRepository(f.alerts),
		AuditWithProvider(f.provider),
		AuditWithArchive(f.archive),
		AuditWithWorkers(2),
	)
	return f
}

// addClaim seeds a backed pending claim whose unit the fake corpus can
// re-fetch during the audit.
func (f *auditFixture) addClaim(t *testing.T, claimText string) *models.Claim {
	t.Helper()
	unit := seedLEO(f.corpus)
	cu := f.corpus.canonical[unit.ID]

	claim := &models.Claim{
		TextID:    uuid.New(),
		UserID:    uuid.New(),
		ClaimType: models.ClaimDeadline,
		ClaimText: claimText,
		UnitRefs: models.UnitReferences{{
			UnitID:       unit.ID,
			InstrumentID: cu.InstrumentID,
			Abbreviation: cu.Abbreviation,
			CitationKey:  unit.CitationKey,
			ContentHash:  unit.ContentHash,
		}},
		RiskLevel:      models.RiskHigh,
		Status:         models.ClaimPending,
		SourceBasis:    SourceBasisDatabase,
		IdempotencyKey: uuid.NewString(),
	}
	require.NoError(t, f.claims.Create(context.Background(), claim))
	return claim
}

func verdictJSON(verdict string, confidence float64) *llm.AuditResponse {
	return &llm.AuditResponse{
		Raw: fmt.Sprintf(`{"verdict": %q, "confidence": %v, "reasoning": "checked"}`, verdict, confidence),
	}
}

func TestVerifyConfirmedClaim(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Audited)
	assert.Equal(t, 0, result.Refuted)
	require.Len(t, result.Reports, 1)

	report := result.Reports[0]
	assert.Equal(t, models.VerdictTrue, report.Verdict)
	assert.Equal(t, models.SeverityInfo, report.Severity)
	assert.Equal(t, "fake", report.Provider)

	stored, err := f.claims.GetByID(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimVerified, stored.Status)
	assert.Empty(t, f.alerts.alerts)
}

func TestVerifyRefutedClaimRaisesAlert(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return &llm.AuditResponse{
			Raw: `{"verdict": "false", "confidence": 0.85, "observed_value": "30 jours", "reasoning": "official text says 30"}`,
		}, nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Refuted)
	require.Len(t, result.Reports, 1)
	report := result.Reports[0]
	assert.Equal(t, models.VerdictFalse, report.Verdict)
	assert.Equal(t, models.SeverityError, report.Severity)
	require.NotNil(t, report.DiffSummary)
	assert.Contains(t, *report.DiffSummary, "30 jours")

	require.Len(t, f.alerts.alerts, 1)
	alert := f.alerts.alerts[0]
	assert.Equal(t, "critical", alert.Severity)
	assert.Equal(t, claim.ID, alert.ClaimID)
	assert.Equal(t, claim.TextID, alert.TextID)

	// Refutation still marks the claim audited
	stored, err := f.claims.GetByID(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimVerified, stored.Status)
}

func TestVerifyMalformedAnswerIsUncertain(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return &llm.AuditResponse{Raw: "The claim looks plausible to me."}, nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Uncertain)
	require.Len(t, result.Reports, 1)
	report := result.Reports[0]
	assert.Equal(t, models.VerdictUncertain, report.Verdict)
	assert.Equal(t, models.SeverityWarning, report.Severity)
	require.NotNil(t, report.Diagnostic)
	assert.Contains(t, *report.Diagnostic, "schema")
	assert.Empty(t, f.alerts.alerts)
}

func TestVerifyProviderFailureIsUncertain(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return nil, errors.New("timeout")
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	require.Len(t, result.Reports, 1)
	report := result.Reports[0]
	assert.Equal(t, models.VerdictUncertain, report.Verdict)
	require.NotNil(t, report.Diagnostic)
	assert.Contains(t, *report.Diagnostic, "audit service unavailable")
}

func TestVerifyFiltersEvidenceDomains(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return &llm.AuditResponse{
			Raw: `{"verdict": "true", "confidence": 0.9, "evidence_urls": ["https://www.fedlex.admin.ch/eli/cc/2013/1", "https://someblog.example.com/leo"], "reasoning": "ok"}`,
		}, nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	require.Len(t, result.Reports, 1)
	assert.Equal(t, models.EvidenceURLs{"https://www.fedlex.admin.ch/eli/cc/2013/1"}, result.Reports[0].Evidence)
}

func TestVerifyEvidenceLeadsWithCanonicalSourceURL(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return &llm.AuditResponse{
			Raw: `{"verdict": "true", "confidence": 0.9, "evidence_urls": ["https://www.fedlex.admin.ch/eli/cc/2013/1"], "reasoning": "ok"}`,
		}, nil
	})

	sourceURL := "https://www.vd.ch/lois/leo"
	leo := f.corpus.addInstrument("LEO", "Loi sur l'enseignement obligatoire", models.InstrumentInForce, "education")
	leo.SourceURL = &sourceURL
	version := f.corpus.addVersion(leo, time.Date(2013, 8, 1, 0, 0, 0, 0, time.UTC), nil)
	unit := f.corpus.addUnit(leo, version, "art. 17", "Le délai de recours est de 10 jours.")
	cu := f.corpus.canonical[unit.ID]

	claim := &models.Claim{
		TextID:    uuid.New(),
		UserID:    uuid.New(),
		ClaimType: models.ClaimDeadline,
		ClaimText: "Le délai de recours est de 10 jours.",
		UnitRefs: models.UnitReferences{{
			UnitID:       unit.ID,
			InstrumentID: cu.InstrumentID,
			Abbreviation: cu.Abbreviation,
			CitationKey:  unit.CitationKey,
			ContentHash:  unit.ContentHash,
		}},
		RiskLevel:      models.RiskHigh,
		Status:         models.ClaimPending,
		SourceBasis:    SourceBasisDatabase,
		IdempotencyKey: uuid.NewString(),
	}
	require.NoError(t, f.claims.Create(context.Background(), claim))

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	// The instrument's own source URL comes first, then the provider's
	require.Len(t, result.Reports, 1)
	assert.Equal(t, models.EvidenceURLs{
		"https://www.vd.ch/lois/leo",
		"https://www.fedlex.admin.ch/eli/cc/2013/1",
	}, result.Reports[0].Evidence)
}

func TestVerifyBatchCap(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})

	var ids []uuid.UUID
	for i := 0; i < MaxAuditBatchSize+2; i++ {
		claim := f.addClaim(t, fmt.Sprintf("Claim %d sur le délai de 10 jours.", i))
		ids = append(ids, claim.ID)
	}

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: ids})
	require.NoError(t, err)

	assert.Equal(t, MaxAuditBatchSize, result.Audited)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, f.reports.reports, MaxAuditBatchSize)
}

func TestVerifyIsolatesPerClaimFailures(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		if strings.Contains(req.ClaimText, "fragile") {
			return nil, errors.New("upstream error")
		}
		return verdictJSON("true", 0.9), nil
	})

	good := f.addClaim(t, "Le délai de recours est de 10 jours.")
	bad := f.addClaim(t, "Une assertion fragile sur le délai.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{good.ID, bad.ID}})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Audited)
	assert.Equal(t, 1, result.Uncertain)

	verdicts := make(map[uuid.UUID]models.Verdict)
	for _, report := range result.Reports {
		verdicts[report.ClaimID] = report.Verdict
	}
	assert.Equal(t, models.VerdictTrue, verdicts[good.ID])
	assert.Equal(t, models.VerdictUncertain, verdicts[bad.ID])
}

func TestVerifyArchivesTranscript(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	_, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	require.Len(t, f.archive.puts, 1)
	assert.Contains(t, f.archive.puts[0], claim.ID.String())
	assert.Contains(t, f.archive.puts[0], `"verdict":"true"`)
}

func TestVerifyArchiveFailureDoesNotFailAudit(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})
	f.archive.fail = true
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	result, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Audited)
}

func TestVerifyNoSelector(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})

	_, err := f.svc.Verify(context.Background(), VerifyRequest{})
	assert.ErrorIs(t, err, ErrNoSelector)
}

func TestVerifyUnknownClaimIDs(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("true", 0.9), nil
	})

	_, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{uuid.New()}})
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestVerifyPromptCarriesCanonicalContent(t *testing.T) {
	var got llm.AuditRequest
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		got = req
		return verdictJSON("true", 0.9), nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	_, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	assert.Equal(t, claim.ClaimText, got.ClaimText)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "LEO", got.Sources[0].Abbreviation)
	assert.Equal(t, "art. 17", got.Sources[0].CitationKey)
	assert.Contains(t, got.Sources[0].Content, "10 jours")
	assert.NotEmpty(t, got.Sources[0].ContentHash)
	assert.NotEmpty(t, got.AllowedDomains)
}

func TestVerifyReverificationAppendsReport(t *testing.T) {
	f := newAuditFixture(func(req llm.AuditRequest) (*llm.AuditResponse, error) {
		return verdictJSON("uncertain", 0.4), nil
	})
	claim := f.addClaim(t, "Le délai de recours est de 10 jours.")

	_, err := f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), VerifyRequest{ClaimIDs: []uuid.UUID{claim.ID}})
	require.NoError(t, err)

	history, err := f.reports.ListByClaimID(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2, "reports are append-only")

	stored, err := f.claims.GetByID(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimVerified, stored.Status)
}
