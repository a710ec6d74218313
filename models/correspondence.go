package models

import (
	"time"

	"github.com/google/uuid"
)

// Correspondence represents a piece of incoming text (typically an email)
// that mentions and claims are scoped to. The pipeline only reads it; mail
// ingestion lives elsewhere.
type Correspondence struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	IncidentID *uuid.UUID `json:"incident_id,omitempty"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Sender     string     `json:"sender"`
	ReceivedAt time.Time  `json:"received_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
