package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MatchType represents how a citation mention was detected
type MatchType string

const (
	MatchExactCitation   MatchType = "exact_citation"
	MatchAlias           MatchType = "alias"
	MatchKeyword         MatchType = "keyword"
	MatchDomainInference MatchType = "domain_inference"
)

// MentionCandidate is a ranked alternate when resolution is ambiguous
type MentionCandidate struct {
	InstrumentID uuid.UUID `json:"instrument_id"`
	Abbreviation string    `json:"abbreviation"`
	Title        string    `json:"title"`
	Rank         int       `json:"rank"`
}

// MentionCandidates represents the candidate list for a mention
type MentionCandidates []MentionCandidate

// Value implements driver.Valuer for JSONB
func (m MentionCandidates) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONB
func (m *MentionCandidates) Scan(value interface{}) error {
	if value == nil {
		*m = make(MentionCandidates, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*m = make(MentionCandidates, 0)
		return nil
	}

	if len(bytes) == 0 {
		*m = make(MentionCandidates, 0)
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Mention represents a detected, not-yet-trusted reference to a legal
// citation inside a piece of correspondence. Immutable after creation.
type Mention struct {
	ID             uuid.UUID         `json:"id"`
	TextID         uuid.UUID         `json:"text_id"`
	MatchType      MatchType         `json:"match_type"`
	MatchText      string            `json:"match_text"`
	Position       int               `json:"position"` // rune offset in subject+body
	Confidence     float64           `json:"confidence"`
	Resolved       bool              `json:"resolved"`
	InstrumentID   *uuid.UUID        `json:"instrument_id,omitempty"`
	UnitID         *uuid.UUID        `json:"unit_id,omitempty"`
	Candidates     MentionCandidates `json:"candidates,omitempty"`
	IdempotencyKey string            `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// DetectionSummary aggregates one detection pass over a text
type DetectionSummary struct {
	Total           int      `json:"total"`
	ExactCitations  int      `json:"exact_citations"`
	Resolved        int      `json:"resolved"`
	Unresolved      int      `json:"unresolved"`
	DetectedDomains []string `json:"detected_domains"`
}
