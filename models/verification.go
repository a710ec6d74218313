package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Verdict is the outcome of one external audit of a claim
type Verdict string

const (
	VerdictTrue      Verdict = "true"
	VerdictFalse     Verdict = "false"
	VerdictUncertain Verdict = "uncertain"
)

// ReportSeverity maps a verdict to operator-facing weight
type ReportSeverity string

const (
	SeverityInfo    ReportSeverity = "info"
	SeverityWarning ReportSeverity = "warning"
	SeverityError   ReportSeverity = "error"
)

// SeverityForVerdict returns the severity mandated for a verdict:
// false -> error, uncertain -> warning, true -> info.
func SeverityForVerdict(v Verdict) ReportSeverity {
	switch v {
	case VerdictFalse:
		return SeverityError
	case VerdictTrue:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// EvidenceURLs represents the merged evidence link list of a report
type EvidenceURLs []string

// Value implements driver.Valuer for JSONB
func (e EvidenceURLs) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *EvidenceURLs) Scan(value interface{}) error {
	if value == nil {
		*e = make(EvidenceURLs, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*e = make(EvidenceURLs, 0)
		return nil
	}

	if len(bytes) == 0 {
		*e = make(EvidenceURLs, 0)
		return nil
	}

	return json.Unmarshal(bytes, e)
}

// VerificationReport is the outcome of auditing one claim once. A claim may
// accumulate several reports; only the most recent affects its status
// downstream.
type VerificationReport struct {
	ID          uuid.UUID      `json:"id"`
	ClaimID     uuid.UUID      `json:"claim_id"`
	Verdict     Verdict        `json:"verdict"`
	Confidence  float64        `json:"confidence"`
	Evidence    EvidenceURLs   `json:"evidence"`
	DiffSummary *string        `json:"diff_summary,omitempty"`
	Severity    ReportSeverity `json:"severity"`
	Diagnostic  *string        `json:"diagnostic,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Alert is raised when an audit refutes a claim. Consumers must treat the
// claim as blocked for any display implying legal certainty.
type Alert struct {
	ID         uuid.UUID  `json:"id"`
	ClaimID    uuid.UUID  `json:"claim_id"`
	TextID     uuid.UUID  `json:"text_id"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
	Severity   string     `json:"severity"` // "critical"
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
}
