package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"lexaudit-backend/llm"
	"lexaudit-backend/models"
	"lexaudit-backend/storage"
	"lexaudit-backend/worker"

	"github.com/google/uuid"
)

// Batch bounds for one audit run. The per-run cap keeps a single request
// from monopolizing the external service; the worker count matches its
// rate limit.
const (
	MaxAuditBatchSize   = 10
	defaultAuditWorkers = 3
)

// AuditService verifies pending claims against an external search-augmented
// reasoning service. The service can only confirm, refute or abstain on
// claims the builder already grounded; its output never creates or mutates
// claims, mentions or corpus rows.
type AuditService struct {
	corpus   CorpusResolver
	claims   ClaimStore
	reports  ReportStore
	alerts   AlertStore
	provider llm.Provider
	archive  storage.Archive
	allow    *llm.AllowList
	workers  int
}

// AuditServiceOption is a functional option for AuditService
type AuditServiceOption func(*AuditService)

// AuditWithCorpusRepository sets the corpus resolver
func AuditWithCorpusRepository(corpus CorpusResolver) AuditServiceOption {
	return func(s *AuditService) {
		s.corpus = corpus
	}
}

// AuditWithClaimRepository sets the claim store
func AuditWithClaimRepository(claims ClaimStore) AuditServiceOption {
	return func(s *AuditService) {
		s.claims = claims
	}
}

// AuditWithReportRepository sets the report store
func AuditWithReportRepository(reports ReportStore) AuditServiceOption {
	return func(s *AuditService) {
		s.reports = reports
	}
}

// AuditWithAlertRepository sets the alert store
func AuditWithAlertRepository(alerts AlertStore) AuditServiceOption {
	return func(s *AuditService) {
		s.alerts = alerts
	}
}

// AuditWithProvider sets the external audit provider
func AuditWithProvider(provider llm.Provider) AuditServiceOption {
	return func(s *AuditService) {
		s.provider = provider
	}
}

// AuditWithArchive sets the transcript archive. Archiving is best effort;
// a nil archive disables it.
func AuditWithArchive(archive storage.Archive) AuditServiceOption {
	return func(s *AuditService) {
		s.archive = archive
	}
}

// AuditWithAllowedDomains sets the evidence-domain allow list
func AuditWithAllowedDomains(domains []string) AuditServiceOption {
	return func(s *AuditService) {
		s.allow = llm.NewAllowList(domains)
	}
}

// AuditWithWorkers sets the fan-out width for one batch
func AuditWithWorkers(workers int) AuditServiceOption {
	return func(s *AuditService) {
		s.workers = workers
	}
}

// NewAuditService creates a new audit service
func NewAuditService(opts ...AuditServiceOption) *AuditService {
	s := &AuditService{workers: defaultAuditWorkers}
	for _, opt := range opts {
		opt(s)
	}
	if s.allow == nil {
		s.allow = llm.NewAllowList(llm.DefaultAllowedDomains())
	}
	return s
}

// VerifyRequest selects the claims to audit. Exactly one selector should be
// set; explicit ids win over text, text over incident.
type VerifyRequest struct {
	ClaimIDs   []uuid.UUID
	TextID     *uuid.UUID
	IncidentID *uuid.UUID
}

// VerifyResult is the outcome of one audit batch
type VerifyResult struct {
	Reports   []*models.VerificationReport
	Alerts    []*models.Alert
	Audited   int
	Refuted   int
	Uncertain int
	Skipped   int // claims beyond the batch cap, left pending
}

// Verify audits a batch of claims concurrently. Each claim is judged in
// isolation: a provider failure, timeout or malformed answer downgrades that
// one claim to an uncertain report and the rest of the batch proceeds. No
// failure mode ever yields a true verdict.
func (s *AuditService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if s.claims == nil || s.reports == nil || s.alerts == nil {
		return nil, errors.New("audit service is missing a repository")
	}
	if s.provider == nil {
		return nil, errors.New("audit provider not set")
	}

	claims, err := s.selectClaims(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{}
	if len(claims) > MaxAuditBatchSize {
		result.Skipped = len(claims) - MaxAuditBatchSize
		claims = claims[:MaxAuditBatchSize]
	}
	if len(claims) == 0 {
		return result, nil
	}

	pool := worker.NewPool(ctx, s.workers)
	pool.Start()
	for _, claim := range claims {
		pool.Submit(&auditJob{service: s, claim: claim})
	}

	for _, poolResult := range pool.Wait() {
		job, ok := poolResult.(*auditOutcome)
		if !ok {
			continue
		}
		if job.err != nil {
			// Persistence failed for this claim; the claim stays pending
			// and a later run picks it up again.
			log.Printf("Warning: audit of claim %s not recorded: %v", job.claim.ID, job.err)
			continue
		}

		result.Audited++
		result.Reports = append(result.Reports, job.report)
		switch job.report.Verdict {
		case models.VerdictFalse:
			result.Refuted++
		case models.VerdictUncertain:
			result.Uncertain++
		}
		if job.alert != nil {
			result.Alerts = append(result.Alerts, job.alert)
		}
	}

	return result, nil
}

// selectClaims resolves the request selector to concrete pending claims
func (s *AuditService) selectClaims(ctx context.Context, req VerifyRequest) ([]*models.Claim, error) {
	switch {
	case len(req.ClaimIDs) > 0:
		claims, err := s.claims.ListByIDs(ctx, req.ClaimIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load claims: %w", err)
		}
		if len(claims) == 0 {
			return nil, ErrReferenceNotFound
		}
		return claims, nil

	case req.TextID != nil:
		claims, err := s.claims.ListPendingByTextID(ctx, *req.TextID)
		if err != nil {
			return nil, fmt.Errorf("failed to load claims for text: %w", err)
		}
		return claims, nil

	case req.IncidentID != nil:
		claims, err := s.claims.ListPendingByIncidentID(ctx, *req.IncidentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load claims for incident: %w", err)
		}
		return claims, nil
	}

	return nil, ErrNoSelector
}

// auditJob audits one claim on the worker pool
type auditJob struct {
	service *AuditService
	claim   *models.Claim
}

// auditOutcome tags the result of one audit job
type auditOutcome struct {
	claim  *models.Claim
	report *models.VerificationReport
	alert  *models.Alert
	err    error
}

func (o *auditOutcome) Err() error { return o.err }

func (j *auditJob) Execute(ctx context.Context) worker.Result {
	report, alert, err := j.service.verifyOne(ctx, j.claim)
	return &auditOutcome{claim: j.claim, report: report, alert: alert, err: err}
}

// verifyOne runs the full audit of a single claim: canonical re-fetch,
// provider call, strict decode, report persistence and, on refutation, the
// critical alert. Only persistence failures surface as errors.
func (s *AuditService) verifyOne(ctx context.Context, claim *models.Claim) (*models.VerificationReport, *models.Alert, error) {
	report := &models.VerificationReport{
		ClaimID:  claim.ID,
		Provider: s.provider.Name(),
		Evidence: models.EvidenceURLs{},
	}

	sources, srcErr := s.canonicalSources(ctx, claim)

	var raw string
	var parsed llm.ParsedVerdict
	var diagnostic string
	switch {
	case srcErr != nil:
		diagnostic = fmt.Sprintf("canonical content unavailable: %v", srcErr)
	case len(sources) == 0:
		diagnostic = "claim unit references resolve to no corpus content"
	default:
		parsed, diagnostic = s.audit(ctx, claim, sources, &raw)
	}

	if diagnostic != "" {
		report.Verdict = models.VerdictUncertain
		report.Confidence = 0
		report.Diagnostic = &diagnostic
	} else {
		report.Verdict = models.Verdict(parsed.Verdict)
		report.Confidence = parsed.Confidence
		report.Evidence = mergeEvidence(sources, s.allow.Filter(parsed.EvidenceURLs))
		if parsed.ObservedValue != "" && report.Verdict == models.VerdictFalse {
			diff := fmt.Sprintf("claim states a value the official text contradicts; observed: %s", parsed.ObservedValue)
			report.DiffSummary = &diff
		}
	}
	report.Severity = models.SeverityForVerdict(report.Verdict)

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, nil, fmt.Errorf("failed to store report: %w", err)
	}

	// Verified means "audited", independent of the verdict
	if err := s.claims.UpdateStatus(ctx, claim.ID, models.ClaimVerified); err != nil {
		return nil, nil, fmt.Errorf("failed to update claim status: %w", err)
	}

	var alert *models.Alert
	if report.Verdict == models.VerdictFalse {
		alert = &models.Alert{
			ClaimID:    claim.ID,
			TextID:     claim.TextID,
			IncidentID: claim.IncidentID,
			Severity:   "critical",
			Message:    refutationMessage(claim, report),
		}
		if err := s.alerts.Create(ctx, alert); err != nil {
			return nil, nil, fmt.Errorf("failed to store alert: %w", err)
		}
	}

	s.archiveTranscript(ctx, report, claim, raw)

	return report, alert, nil
}

// audit performs the provider round trip and strict decode for one claim.
// A non-empty diagnostic means the verdict must be downgraded to uncertain.
func (s *AuditService) audit(ctx context.Context, claim *models.Claim, sources []llm.CanonicalSource, raw *string) (llm.ParsedVerdict, string) {
	resp, err := s.provider.Audit(ctx, llm.AuditRequest{
		ClaimText:      claim.ClaimText,
		Sources:        sources,
		AllowedDomains: s.allow.Domains(),
	})
	if err != nil {
		return llm.ParsedVerdict{}, fmt.Sprintf("audit service unavailable: %v", err)
	}
	*raw = resp.Raw

	parsed, ok := llm.ParseVerdict(resp.Raw)
	if !ok {
		return llm.ParsedVerdict{}, "audit answer did not match the expected schema"
	}

	parsed.EvidenceURLs = append(parsed.EvidenceURLs, resp.InlineURLs...)
	return parsed, ""
}

// mergeEvidence leads with the canonical source URLs, which are trusted by
// construction and skip the allow list, followed by the provider's filtered
// URLs. Duplicates are dropped.
func mergeEvidence(sources []llm.CanonicalSource, provider []string) models.EvidenceURLs {
	merged := models.EvidenceURLs{}
	seen := make(map[string]bool)
	for _, src := range sources {
		if src.SourceURL == "" || seen[src.SourceURL] {
			continue
		}
		seen[src.SourceURL] = true
		merged = append(merged, src.SourceURL)
	}
	for _, url := range provider {
		if seen[url] {
			continue
		}
		seen[url] = true
		merged = append(merged, url)
	}
	return merged
}

// canonicalSources re-fetches the claim's unit references so the audit always
// sees the database's current answer, not a stale snapshot.
func (s *AuditService) canonicalSources(ctx context.Context, claim *models.Claim) ([]llm.CanonicalSource, error) {
	if s.corpus == nil {
		return nil, errors.New("corpus repository not set")
	}

	unitIDs := make([]uuid.UUID, 0, len(claim.UnitRefs))
	for _, ref := range claim.UnitRefs {
		unitIDs = append(unitIDs, ref.UnitID)
	}

	canonical, err := s.corpus.GetCanonicalUnits(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	sources := make([]llm.CanonicalSource, 0, len(canonical))
	for _, cu := range canonical {
		src := llm.CanonicalSource{
			Abbreviation: cu.Abbreviation,
			CitationKey:  cu.Unit.CitationKey,
			Content:      cu.Unit.Content,
			ContentHash:  cu.Unit.ContentHash,
		}
		if cu.SourceURL != nil {
			src.SourceURL = *cu.SourceURL
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// archiveTranscript stores the raw provider exchange for reviewers. Best
// effort: an archive failure is logged, never propagated.
func (s *AuditService) archiveTranscript(ctx context.Context, report *models.VerificationReport, claim *models.Claim, raw string) {
	if s.archive == nil || raw == "" {
		return
	}

	transcript, err := json.Marshal(map[string]interface{}{
		"report_id":  report.ID,
		"claim_id":   claim.ID,
		"claim_text": claim.ClaimText,
		"provider":   report.Provider,
		"verdict":    report.Verdict,
		"raw":        raw,
	})
	if err != nil {
		return
	}

	if _, err := s.archive.Put(ctx, report.ID, strings.NewReader(string(transcript))); err != nil {
		log.Printf("Warning: failed to archive audit transcript for report %s: %v", report.ID, err)
	}
}

func refutationMessage(claim *models.Claim, report *models.VerificationReport) string {
	msg := fmt.Sprintf("audit refuted %s claim: %s", claim.ClaimType, truncate(claim.ClaimText, 120))
	if report.DiffSummary != nil {
		msg += " (" + *report.DiffSummary + ")"
	}
	return msg
}
