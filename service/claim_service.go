package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"lexaudit-backend/models"
	"lexaudit-backend/repository"

	"github.com/google/uuid"
)

// SourceBasisDatabase is the only source basis claims are ever built with.
// Claims never originate from model output or operator free text.
const SourceBasisDatabase = "database-only"

// ClaimService turns resolved citation mentions into verification claims.
// Every claim it produces carries at least one corpus unit reference;
// candidate claims without database backing are dropped and counted, never
// persisted.
type ClaimService struct {
	corpus   CorpusResolver
	mentions MentionStore
	claims   ClaimStore
	texts    TextStore
}

// ClaimServiceOption is a functional option for ClaimService
type ClaimServiceOption func(*ClaimService)

// ClaimWithCorpusRepository sets the corpus resolver
func ClaimWithCorpusRepository(corpus CorpusResolver) ClaimServiceOption {
	return func(s *ClaimService) {
		s.corpus = corpus
	}
}

// ClaimWithMentionRepository sets the mention store
func ClaimWithMentionRepository(mentions MentionStore) ClaimServiceOption {
	return func(s *ClaimService) {
		s.mentions = mentions
	}
}

// ClaimWithClaimRepository sets the claim store
func ClaimWithClaimRepository(claims ClaimStore) ClaimServiceOption {
	return func(s *ClaimService) {
		s.claims = claims
	}
}

// ClaimWithCorrespondenceRepository sets the correspondence store
func ClaimWithCorrespondenceRepository(texts TextStore) ClaimServiceOption {
	return func(s *ClaimService) {
		s.texts = texts
	}
}

// NewClaimService creates a new claim service
func NewClaimService(opts ...ClaimServiceOption) *ClaimService {
	s := &ClaimService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// deadlinePattern matches deadline figures like "10 jours" in correspondence
// and in unit content.
var deadlinePattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s*jours?\b`)

// BuildClaimsRequest represents a request to build claims for one text.
// Analysis optionally carries externally supplied assertions; they go through
// the same corpus resolution as detected mentions and enjoy no shortcut past
// the backing gate.
type BuildClaimsRequest struct {
	TextID     uuid.UUID
	UserID     uuid.UUID
	IncidentID *uuid.UUID
	Analysis   *AnalysisResult
}

// AnalysisResult is a structured set of assertions produced outside the
// detection pass, e.g. by an upstream document analyzer.
type AnalysisResult struct {
	References []AssertedReference
	Deadlines  []string // asserted deadline statements, e.g. "10 jours pour recourir"
	Procedures []string // asserted procedure or right keywords
}

// AssertedReference names a legal provision together with the statement that
// invokes it.
type AssertedReference struct {
	Abbreviation string
	CitationKey  string // e.g. "art. 17"
	Statement    string
}

// BuildClaimsResult represents the outcome of a claim-building pass.
// Blocked counts candidate claims that were dropped for lacking database
// backing; the reasons are surfaced so operators can spot corpus gaps.
type BuildClaimsResult struct {
	Claims         []*models.Claim
	Blocked        int
	BlockedReasons []string
}

// BuildClaims constructs verification claims from the mentions previously
// detected on a text, or on every text of an incident when only an incident
// is named. Construction is two-phase: every claim is resolved and assembled
// in memory first, then the whole batch is persisted. A corpus failure during
// the first phase aborts with zero claims built; a partially grounded batch
// is never stored.
func (s *ClaimService) BuildClaims(ctx context.Context, req BuildClaimsRequest) (*BuildClaimsResult, error) {
	if s.corpus == nil || s.mentions == nil || s.claims == nil || s.texts == nil {
		return nil, errors.New("claim service is missing a repository")
	}

	if req.TextID != uuid.Nil {
		return s.buildForText(ctx, req, req.TextID)
	}
	if req.IncidentID == nil {
		return nil, ErrNoSelector
	}

	texts, err := s.texts.ListByIncidentID(ctx, *req.IncidentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if len(texts) == 0 {
		return nil, ErrReferenceNotFound
	}

	merged := &BuildClaimsResult{}
	for _, text := range texts {
		result, err := s.buildForText(ctx, req, text.ID)
		if err != nil {
			return nil, err
		}
		merged.Claims = append(merged.Claims, result.Claims...)
		merged.Blocked += result.Blocked
		merged.BlockedReasons = append(merged.BlockedReasons, result.BlockedReasons...)
	}
	return merged, nil
}

func (s *ClaimService) buildForText(ctx context.Context, req BuildClaimsRequest, textID uuid.UUID) (*BuildClaimsResult, error) {
	req.TextID = textID

	text, err := s.texts.GetByID(ctx, textID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if text == nil {
		return nil, ErrReferenceNotFound
	}

	mentions, err := s.mentions.ListByTextID(ctx, req.TextID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}

	result := &BuildClaimsResult{}
	full := text.Subject + "\n" + text.Body

	// Phase one: fetch the canonical backing for every resolved mention
	var unitIDs []uuid.UUID
	seenUnits := make(map[uuid.UUID]bool)
	for _, mention := range mentions {
		if mention.Resolved && mention.UnitID != nil && !seenUnits[*mention.UnitID] {
			seenUnits[*mention.UnitID] = true
			unitIDs = append(unitIDs, *mention.UnitID)
		}
	}

	canonical, err := s.corpus.GetCanonicalUnits(ctx, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	byUnit := make(map[uuid.UUID]repository.CanonicalUnit, len(canonical))
	for _, cu := range canonical {
		byUnit[cu.Unit.ID] = cu
	}

	// Phase two: assemble candidate claims in memory
	var candidates []*models.Claim

	for _, mention := range mentions {
		switch {
		case mention.Resolved && mention.UnitID != nil:
			cu, ok := byUnit[*mention.UnitID]
			if !ok {
				// Mention points at a unit the corpus no longer returns
				result.Blocked++
				result.BlockedReasons = append(result.BlockedReasons,
					fmt.Sprintf("mention %q references a unit missing from the corpus", mention.MatchText))
				continue
			}
			candidates = append(candidates, s.assertionClaim(req, full, mention, cu))

		case mention.MatchType == models.MatchExactCitation || mention.MatchType == models.MatchAlias:
			// An unresolved citation never yields a claim
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("citation %q is unresolved, no claim built", mention.MatchText))
		}
	}

	if req.Analysis != nil {
		analysisCandidates, analysisUnits, err := s.analysisClaims(ctx, req, canonical, result)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, analysisCandidates...)
		canonical = append(canonical, analysisUnits...)
	}

	candidates = append(candidates, s.deadlineClaims(req, full, canonical, result)...)
	candidates = append(candidates, s.procedureClaims(req, full, canonical)...)

	// Final gate: nothing without a unit reference reaches the store, no
	// matter how it was assembled above.
	deduped := make(map[string]bool)
	for _, claim := range candidates {
		if !claim.IsBacked() {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("claim %q has no database backing", truncate(claim.ClaimText, 80)))
			log.Printf("Warning: dropped unbacked claim candidate for text %s", req.TextID)
			continue
		}
		claim.IdempotencyKey = claimKey(claim)
		if deduped[claim.IdempotencyKey] {
			continue
		}
		deduped[claim.IdempotencyKey] = true
		result.Claims = append(result.Claims, claim)
	}

	// Persist the whole batch
	for _, claim := range result.Claims {
		if err := s.claims.Create(ctx, claim); err != nil {
			return nil, fmt.Errorf("failed to store claim: %w", err)
		}
	}

	return result, nil
}

// assertionClaim builds the base claim for a resolved citation: the sentence
// invoking the provision, grounded on that provision's canonical unit.
func (s *ClaimService) assertionClaim(
	req BuildClaimsRequest,
	full string,
	mention *models.Mention,
	cu repository.CanonicalUnit,
) *models.Claim {
	return &models.Claim{
		TextID:      req.TextID,
		IncidentID:  req.IncidentID,
		UserID:      req.UserID,
		ClaimType:   models.ClaimLegalAssertion,
		ClaimText:   assertionText(sentenceAround(full, mention.Position), cu),
		UnitRefs:    models.UnitReferences{unitRef(cu)},
		RiskLevel:   models.RiskMedium,
		Status:      models.ClaimPending,
		SourceBasis: SourceBasisDatabase,
	}
}

// assertionText couples the asserting statement with a verbatim excerpt of
// the unit backing it, so the stored claim text cannot drift from what the
// corpus actually says.
func assertionText(statement string, cu repository.CanonicalUnit) string {
	excerpt := truncate(strings.TrimSpace(cu.Unit.Content), 200)
	return fmt.Sprintf("%s [%s %s: %s]", statement, cu.Abbreviation, cu.Unit.CitationKey, excerpt)
}

// analysisClaims resolves externally asserted references against the corpus
// and builds claims for asserted deadlines and procedures. The same rules
// apply as for detected mentions: a reference the corpus cannot resolve, or a
// deadline figure no resolved unit states, is blocked.
func (s *ClaimService) analysisClaims(
	ctx context.Context,
	req BuildClaimsRequest,
	mentionUnits []repository.CanonicalUnit,
	result *BuildClaimsResult,
) ([]*models.Claim, []repository.CanonicalUnit, error) {
	var candidates []*models.Claim
	var analysisUnits []repository.CanonicalUnit

	for _, ref := range req.Analysis.References {
		cu, err := s.resolveReference(ctx, ref)
		if err != nil {
			return nil, nil, err
		}
		if cu == nil {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("asserted reference %s %s could not be resolved against the corpus", ref.Abbreviation, ref.CitationKey))
			continue
		}
		analysisUnits = append(analysisUnits, *cu)

		claimText := strings.TrimSpace(ref.Statement)
		if claimText == "" {
			claimText = fmt.Sprintf("%s %s", ref.CitationKey, ref.Abbreviation)
		}
		claimText = assertionText(claimText, *cu)
		candidates = append(candidates, &models.Claim{
			TextID:      req.TextID,
			IncidentID:  req.IncidentID,
			UserID:      req.UserID,
			ClaimType:   models.ClaimLegalAssertion,
			ClaimText:   claimText,
			UnitRefs:    models.UnitReferences{unitRef(*cu)},
			RiskLevel:   models.RiskMedium,
			Status:      models.ClaimPending,
			SourceBasis: SourceBasisDatabase,
		})
	}

	combined := append(append([]repository.CanonicalUnit{}, mentionUnits...), analysisUnits...)

	for _, statement := range req.Analysis.Deadlines {
		m := deadlinePattern.FindStringSubmatch(statement)
		if m == nil {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("asserted deadline %q carries no recognizable figure", truncate(statement, 80)))
			continue
		}
		backing := backingForFigure(combined, m[1])
		if backing == nil {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("deadline %q has no backing in any resolved unit", m[0]))
			continue
		}
		candidates = append(candidates, &models.Claim{
			TextID:      req.TextID,
			IncidentID:  req.IncidentID,
			UserID:      req.UserID,
			ClaimType:   models.ClaimDeadline,
			ClaimText:   strings.TrimSpace(statement),
			UnitRefs:    models.UnitReferences{unitRef(*backing)},
			RiskLevel:   models.RiskHigh,
			Status:      models.ClaimPending,
			SourceBasis: SourceBasisDatabase,
		})
	}

	for _, keyword := range req.Analysis.Procedures {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		backing := backingForKeyword(combined, keyword)
		if backing == nil {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("asserted procedure %q has no backing in any resolved unit", keyword))
			continue
		}
		claimType := models.ClaimProcedure
		if strings.HasPrefix(keyword, "droit") {
			claimType = models.ClaimRight
		}
		candidates = append(candidates, &models.Claim{
			TextID:      req.TextID,
			IncidentID:  req.IncidentID,
			UserID:      req.UserID,
			ClaimType:   claimType,
			ClaimText:   keyword,
			UnitRefs:    models.UnitReferences{unitRef(*backing)},
			RiskLevel:   models.RiskMedium,
			Status:      models.ClaimPending,
			SourceBasis: SourceBasisDatabase,
		})
	}

	return candidates, analysisUnits, nil
}

// resolveReference maps an asserted reference to its canonical unit via the
// in-force instrument's current version. Absence returns (nil, nil).
func (s *ClaimService) resolveReference(ctx context.Context, ref AssertedReference) (*repository.CanonicalUnit, error) {
	inForce := models.InstrumentInForce
	instrument, err := s.corpus.GetInstrumentByAbbreviation(ctx, ref.Abbreviation, &inForce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if instrument == nil {
		return nil, nil
	}

	version, err := s.corpus.GetCurrentVersion(ctx, instrument.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if version == nil {
		return nil, nil
	}

	unit, err := s.corpus.GetUnitByCitationKey(ctx, version.ID, ref.CitationKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if unit == nil {
		return nil, nil
	}

	return &repository.CanonicalUnit{
		Unit:         *unit,
		InstrumentID: instrument.ID,
		Abbreviation: instrument.Abbreviation,
		SourceURL:    instrument.SourceURL,
	}, nil
}

// deadlineClaims extracts deadline figures from the text and keeps only the
// ones a resolved unit actually states. A figure no backing unit contains is
// counted as blocked; the figure asserted in the correspondence may simply
// be wrong, and that is exactly what the audit step exists to judge, but
// without backing there is nothing to hand it.
func (s *ClaimService) deadlineClaims(
	req BuildClaimsRequest,
	full string,
	canonical []repository.CanonicalUnit,
	result *BuildClaimsResult,
) []*models.Claim {
	var claims []*models.Claim
	seen := make(map[string]bool)

	for _, m := range deadlinePattern.FindAllStringSubmatchIndex(full, -1) {
		figure := full[m[2]:m[3]]
		if seen[figure] {
			continue
		}
		seen[figure] = true

		backing := backingForFigure(canonical, figure)
		if backing == nil {
			result.Blocked++
			result.BlockedReasons = append(result.BlockedReasons,
				fmt.Sprintf("deadline %q has no backing in any resolved unit", full[m[0]:m[1]]))
			continue
		}

		claims = append(claims, &models.Claim{
			TextID:      req.TextID,
			IncidentID:  req.IncidentID,
			UserID:      req.UserID,
			ClaimType:   models.ClaimDeadline,
			ClaimText:   sentenceAround(full, runeAt(full, m[0])),
			UnitRefs:    models.UnitReferences{unitRef(*backing)},
			RiskLevel:   models.RiskHigh,
			Status:      models.ClaimPending,
			SourceBasis: SourceBasisDatabase,
		})
	}
	return claims
}

// procedureKeywords and rightKeywords drive the remaining claim types. A
// keyword in the correspondence only yields a claim when a resolved unit's
// content carries the same keyword.
var (
	procedureKeywords = []string{"recours", "opposition", "notification"}
	rightKeywords     = []string{"droit d'accès", "droit de consulter", "droit d'être entendu"}
)

func (s *ClaimService) procedureClaims(
	req BuildClaimsRequest,
	full string,
	canonical []repository.CanonicalUnit,
) []*models.Claim {
	var claims []*models.Claim
	lower := strings.ToLower(full)

	build := func(keyword string, claimType models.ClaimType, risk models.RiskLevel) {
		idx := strings.Index(lower, keyword)
		if idx < 0 {
			return
		}
		backing := backingForKeyword(canonical, keyword)
		if backing == nil {
			return
		}
		claims = append(claims, &models.Claim{
			TextID:      req.TextID,
			IncidentID:  req.IncidentID,
			UserID:      req.UserID,
			ClaimType:   claimType,
			ClaimText:   sentenceAround(full, runeAt(full, idx)),
			UnitRefs:    models.UnitReferences{unitRef(*backing)},
			RiskLevel:   risk,
			Status:      models.ClaimPending,
			SourceBasis: SourceBasisDatabase,
		})
	}

	for _, kw := range procedureKeywords {
		build(kw, models.ClaimProcedure, models.RiskMedium)
	}
	for _, kw := range rightKeywords {
		build(kw, models.ClaimRight, models.RiskMedium)
	}
	return claims
}

func backingForFigure(canonical []repository.CanonicalUnit, figure string) *repository.CanonicalUnit {
	for i := range canonical {
		for _, m := range deadlinePattern.FindAllStringSubmatch(canonical[i].Unit.Content, -1) {
			if m[1] == figure {
				return &canonical[i]
			}
		}
	}
	return nil
}

func backingForKeyword(canonical []repository.CanonicalUnit, keyword string) *repository.CanonicalUnit {
	for i := range canonical {
		if strings.Contains(strings.ToLower(canonical[i].Unit.Content), keyword) {
			return &canonical[i]
		}
	}
	return nil
}

func unitRef(cu repository.CanonicalUnit) models.UnitReference {
	return models.UnitReference{
		UnitID:       cu.Unit.ID,
		InstrumentID: cu.InstrumentID,
		Abbreviation: cu.Abbreviation,
		CitationKey:  cu.Unit.CitationKey,
		ContentHash:  cu.Unit.ContentHash,
	}
}

// claimKey derives the claim idempotency key from the stable parts of the
// claim. Rebuilding claims for an unchanged text reproduces the same keys.
func claimKey(claim *models.Claim) string {
	ids := make([]string, 0, len(claim.UnitRefs))
	for _, ref := range claim.UnitRefs {
		ids = append(ids, ref.UnitID.String())
	}
	sort.Strings(ids)

	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s|%s",
		claim.TextID, claim.ClaimType, claim.ClaimText, strings.Join(ids, ","), claim.SourceBasis)))
	return hex.EncodeToString(h[:])
}

// sentenceAround returns the sentence containing the given rune offset,
// bounded by sentence punctuation or newlines. A period only ends a sentence
// when followed by an uppercase letter or the end of the text, so citation
// abbreviations like "art. 17" do not split the sentence.
func sentenceAround(text string, runePos int) string {
	runes := []rune(text)
	if runePos < 0 || runePos >= len(runes) {
		return strings.TrimSpace(text)
	}

	isBoundary := func(i int) bool {
		switch runes[i] {
		case '!', '?', '\n':
			return true
		case '.':
			for j := i + 1; j < len(runes); j++ {
				if unicode.IsSpace(runes[j]) {
					continue
				}
				return unicode.IsUpper(runes[j])
			}
			return true
		}
		return false
	}

	start := runePos
	for start > 0 && !isBoundary(start-1) {
		start--
	}
	end := runePos
	for end < len(runes) && !isBoundary(end) {
		end++
	}
	if end < len(runes) && runes[end] != '\n' {
		end++ // keep the terminal punctuation
	}

	return strings.TrimSpace(string(runes[start:end]))
}

func runeAt(text string, byteIdx int) int {
	return len([]rune(text[:byteIdx]))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
