package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"lexaudit-backend/lexicon"
	"lexaudit-backend/models"

	"github.com/google/uuid"
)

// DetectionService scans correspondence for legal citations and resolves
// them against the corpus. It has no dependency on the audit verifier or
// any external AI service; a detection pass touches the database only.
type DetectionService struct {
	corpus   CorpusResolver
	mentions MentionStore
	texts    TextStore
	lex      *lexicon.Lexicon
}

// DetectionServiceOption is a functional option for DetectionService
type DetectionServiceOption func(*DetectionService)

// DetectionWithCorpusRepository sets the corpus resolver
func DetectionWithCorpusRepository(corpus CorpusResolver) DetectionServiceOption {
	return func(s *DetectionService) {
		s.corpus = corpus
	}
}

// DetectionWithMentionRepository sets the mention store
func DetectionWithMentionRepository(mentions MentionStore) DetectionServiceOption {
	return func(s *DetectionService) {
		s.mentions = mentions
	}
}

// DetectionWithCorrespondenceRepository sets the correspondence store
func DetectionWithCorrespondenceRepository(texts TextStore) DetectionServiceOption {
	return func(s *DetectionService) {
		s.texts = texts
	}
}

// DetectionWithLexicon sets the detection lexicon
func DetectionWithLexicon(lex *lexicon.Lexicon) DetectionServiceOption {
	return func(s *DetectionService) {
		s.lex = lex
	}
}

// NewDetectionService creates a new detection service
func NewDetectionService(opts ...DetectionServiceOption) *DetectionService {
	s := &DetectionService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.lex == nil {
		s.lex = lexicon.Default()
	}
	return s
}

// Confidence tiers for mention resolution outcomes
const (
	confidenceResolved   = 0.95
	confidenceUnresolved = 0.5
	confidenceKeyword    = 0.45
)

// DetectTextRequest represents a request to run a detection pass.
// Subject/Body may be empty, in which case the stored text is loaded by id.
type DetectTextRequest struct {
	TextID  uuid.UUID
	Subject string
	Body    string
	Sender  string
	Date    *time.Time
}

// DetectTextResult represents the outcome of a detection pass
type DetectTextResult struct {
	Summary  models.DetectionSummary
	Mentions []*models.Mention
	Warnings []string
}

// DetectText runs one detection pass over a piece of correspondence.
// Every mention, resolved or not, is persisted for auditability; running
// the same pass twice yields the identical mention set.
func (s *DetectionService) DetectText(ctx context.Context, req DetectTextRequest) (*DetectTextResult, error) {
	if s.corpus == nil {
		return nil, errors.New("corpus repository not set")
	}
	if s.mentions == nil {
		return nil, errors.New("mention repository not set")
	}

	subject, body := req.Subject, req.Body
	if subject == "" && body == "" {
		if s.texts == nil {
			return nil, errors.New("correspondence repository not set")
		}
		text, err := s.texts.GetByID(ctx, req.TextID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
		}
		if text == nil {
			return nil, ErrReferenceNotFound
		}
		subject, body = text.Subject, text.Body
	}

	full := subject + "\n" + body
	result := &DetectTextResult{}

	// 1. Citation-shape matches
	citations := lexicon.ExtractCitations(full)
	claimed := make(map[string]bool) // canonical abbreviations already cited
	for _, citation := range citations {
		mention, warning, err := s.resolveCitation(ctx, req.TextID, citation, req.Date)
		if err != nil {
			return nil, err
		}
		if mention.InstrumentID != nil || mention.Resolved {
			if abbr := citation.Abbreviation; abbr != "" {
				canonical, _ := s.lex.Normalize(abbr)
				claimed[canonical] = true
			}
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Mentions = append(result.Mentions, mention)
	}

	// 2. Instrument keyword phrases not already covered by a citation
	for _, kw := range s.lex.FindKeywordPhrases(full) {
		if claimed[kw.Abbreviation] {
			continue
		}
		mention, err := s.resolveKeyword(ctx, req.TextID, kw)
		if err != nil {
			return nil, err
		}
		if mention != nil {
			claimed[kw.Abbreviation] = true
			result.Mentions = append(result.Mentions, mention)
		}
	}

	// 3. Domain inference, always distinct from (and weaker than) citations
	var detectedDomains []string
	for _, score := range s.lex.ScoreDomains(full) {
		if !score.Detected {
			continue
		}
		detectedDomains = append(detectedDomains, score.Name)
		mention, err := s.inferDomain(ctx, req.TextID, full, score)
		if err != nil {
			return nil, err
		}
		if mention != nil {
			result.Mentions = append(result.Mentions, mention)
		}
	}
	sort.Strings(detectedDomains)

	// 4. Persist every mention; the idempotency key absorbs re-runs
	for _, mention := range result.Mentions {
		mention.IdempotencyKey = mentionKey(req.TextID, mention)
		if err := s.mentions.Upsert(ctx, mention); err != nil {
			return nil, fmt.Errorf("%w: failed to store mention: %v", ErrResolutionUnavailable, err)
		}
	}

	// 5. Summarize
	for _, mention := range result.Mentions {
		result.Summary.Total++
		if mention.MatchType == models.MatchExactCitation || mention.MatchType == models.MatchAlias {
			result.Summary.ExactCitations++
		}
		if mention.Resolved {
			result.Summary.Resolved++
		} else {
			result.Summary.Unresolved++
		}
	}
	result.Summary.DetectedDomains = detectedDomains

	return result, nil
}

// resolveCitation resolves one citation-shape match against the corpus.
// With a date set the version valid on that date answers, so citations in
// older correspondence resolve against the law of their day. Absence of
// corpus data is a normal unresolved outcome, never an error.
func (s *DetectionService) resolveCitation(
	ctx context.Context,
	textID uuid.UUID,
	citation lexicon.Citation,
	asOf *time.Time,
) (*models.Mention, string, error) {
	mention := &models.Mention{
		TextID:     textID,
		MatchType:  models.MatchExactCitation,
		MatchText:  citation.MatchText,
		Position:   citation.Position,
		Confidence: confidenceUnresolved,
	}

	if citation.Abbreviation == "" {
		// Bare "§N" carries no instrument; leave for operator review
		warning := fmt.Sprintf("citation %q has no instrument abbreviation and stays unresolved", citation.MatchText)
		return mention, warning, nil
	}

	canonical, viaAlias := s.lex.Normalize(citation.Abbreviation)
	if viaAlias {
		mention.MatchType = models.MatchAlias
	}

	inForce := models.InstrumentInForce
	instrument, err := s.corpus.GetInstrumentByAbbreviation(ctx, canonical, &inForce)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if instrument == nil {
		warning := fmt.Sprintf("citation %q could not be resolved against the corpus", citation.MatchText)
		return mention, warning, nil
	}

	mention.InstrumentID = &instrument.ID
	mention.Candidates = models.MentionCandidates{{
		InstrumentID: instrument.ID,
		Abbreviation: instrument.Abbreviation,
		Title:        instrument.Title,
		Rank:         1,
	}}

	var version *models.Version
	if asOf != nil {
		version, err = s.corpus.GetVersionAt(ctx, instrument.ID, *asOf)
	} else {
		version, err = s.corpus.GetCurrentVersion(ctx, instrument.ID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if version == nil {
		warning := fmt.Sprintf("instrument %s has no version for the requested date; citation %q stays unresolved", instrument.Abbreviation, citation.MatchText)
		return mention, warning, nil
	}

	unit, err := s.corpus.GetUnitByCitationKey(ctx, version.ID, citationKeyFromLocator(citation.Locator))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if unit == nil {
		// Instrument known but article missing: a DB coverage gap worth surfacing
		warning := fmt.Sprintf("instrument %s is known but unit %q is not in the corpus", instrument.Abbreviation, citationKeyFromLocator(citation.Locator))
		return mention, warning, nil
	}

	mention.Resolved = true
	mention.UnitID = &unit.ID
	mention.Confidence = confidenceResolved
	return mention, "", nil
}

// resolveKeyword turns a verbatim instrument phrase into a keyword mention
func (s *DetectionService) resolveKeyword(
	ctx context.Context,
	textID uuid.UUID,
	kw lexicon.KeywordMatch,
) (*models.Mention, error) {
	inForce := models.InstrumentInForce
	instrument, err := s.corpus.GetInstrumentByAbbreviation(ctx, kw.Abbreviation, &inForce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if instrument == nil {
		return nil, nil
	}

	return &models.Mention{
		TextID:       textID,
		MatchType:    models.MatchKeyword,
		MatchText:    kw.Phrase,
		Position:     kw.Position,
		Confidence:   confidenceKeyword,
		InstrumentID: &instrument.ID,
		Candidates: models.MentionCandidates{{
			InstrumentID: instrument.ID,
			Abbreviation: instrument.Abbreviation,
			Title:        instrument.Title,
			Rank:         1,
		}},
	}, nil
}

// inferDomain emits one low-confidence mention per detected domain, with
// the domain's instruments as ranked candidates.
func (s *DetectionService) inferDomain(
	ctx context.Context,
	textID uuid.UUID,
	full string,
	score lexicon.DomainScore,
) (*models.Mention, error) {
	instruments, err := s.corpus.ListInstrumentsByDomain(ctx, score.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if len(instruments) == 0 {
		log.Printf("Warning: domain %q detected but no instruments carry the tag", score.Name)
		return nil, nil
	}

	candidates := make(models.MentionCandidates, 0, len(instruments))
	for i, instrument := range instruments {
		candidates = append(candidates, models.MentionCandidate{
			InstrumentID: instrument.ID,
			Abbreviation: instrument.Abbreviation,
			Title:        instrument.Title,
			Rank:         i + 1,
		})
	}

	position := 0
	if len(score.Matched) > 0 {
		if idx := strings.Index(strings.ToLower(full), strings.ToLower(score.Matched[0])); idx >= 0 {
			position = len([]rune(full[:idx]))
		}
	}

	return &models.Mention{
		TextID:     textID,
		MatchType:  models.MatchDomainInference,
		MatchText:  strings.Join(score.Matched, ", "),
		Position:   position,
		Confidence: score.Confidence(),
		Candidates: candidates,
	}, nil
}

// citationKeyFromLocator reduces a locator like "17 al. 2" to the unit
// citation key "art. 17"; paragraph and letter qualifiers address inside a
// unit, not a different unit.
func citationKeyFromLocator(locator string) string {
	fields := strings.Fields(locator)
	if len(fields) == 0 {
		return ""
	}
	return "art. " + fields[0]
}

// mentionKey derives the mention idempotency key. Timestamps are excluded
// so repeated passes over identical text produce identical keys.
func mentionKey(textID uuid.UUID, mention *models.Mention) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", textID, mention.MatchType, mention.MatchText, mention.Position)))
	return hex.EncodeToString(h[:])
}
