package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ClaimType categorizes the nature of a verification claim
type ClaimType string

const (
	ClaimLegalAssertion ClaimType = "legal_assertion"
	ClaimDeadline       ClaimType = "deadline_claim"
	ClaimProcedure      ClaimType = "procedure_claim"
	ClaimRight          ClaimType = "right_claim"
)

// ClaimStatus represents the verification lifecycle of a claim.
// The only transition is pending -> verified; re-verification appends
// another report without reverting status.
type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimVerified ClaimStatus = "verified"
)

// RiskLevel represents the legal consequence weight of a claim
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// UnitReference ties a claim to a concrete corpus unit. The content hash is
// captured at claim construction so auditors can see exactly what text the
// claim was grounded on.
type UnitReference struct {
	UnitID       uuid.UUID `json:"unit_id"`
	InstrumentID uuid.UUID `json:"instrument_id"`
	Abbreviation string    `json:"abbreviation"`
	CitationKey  string    `json:"citation_key"`
	ContentHash  string    `json:"content_hash"`
}

// UnitReferences represents the unit-reference list of a claim
type UnitReferences []UnitReference

// Value implements driver.Valuer for JSONB
func (u UnitReferences) Value() (driver.Value, error) {
	return json.Marshal(u)
}

// Scan implements sql.Scanner for JSONB
func (u *UnitReferences) Scan(value interface{}) error {
	if value == nil {
		*u = make(UnitReferences, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*u = make(UnitReferences, 0)
		return nil
	}

	if len(bytes) == 0 {
		*u = make(UnitReferences, 0)
		return nil
	}

	return json.Unmarshal(bytes, u)
}

// Claim represents an assertion the system is willing to have audited.
// A well-formed claim always carries at least one unit reference; anything
// without database backing is dropped at construction time and counted.
type Claim struct {
	ID             uuid.UUID      `json:"id"`
	TextID         uuid.UUID      `json:"text_id"`
	IncidentID     *uuid.UUID     `json:"incident_id,omitempty"`
	UserID         uuid.UUID      `json:"user_id"`
	ClaimType      ClaimType      `json:"claim_type"`
	ClaimText      string         `json:"claim_text"`
	UnitRefs       UnitReferences `json:"unit_refs"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Status         ClaimStatus    `json:"status"`
	SourceBasis    string         `json:"source_basis"` // always "database-only"
	IdempotencyKey string         `json:"-"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsBacked reports whether the claim satisfies the grounding invariant
func (c *Claim) IsBacked() bool {
	return len(c.UnitRefs) > 0
}
