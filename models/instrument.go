package models

import (
	"time"

	"github.com/google/uuid"
)

// InstrumentStatus represents the lifecycle status of a legal instrument
type InstrumentStatus string

const (
	InstrumentInForce    InstrumentStatus = "in_force"
	InstrumentRepealed   InstrumentStatus = "repealed"
	InstrumentSuperseded InstrumentStatus = "superseded"
)

// Instrument represents a legal text (law, ordinance, code) as a whole
type Instrument struct {
	ID           uuid.UUID        `json:"id"`
	Jurisdiction string           `json:"jurisdiction"`
	Title        string           `json:"title"`
	Abbreviation string           `json:"abbreviation"`
	DomainTags   []string         `json:"domain_tags"`
	Status       InstrumentStatus `json:"status"`
	ReplacedBy   *uuid.UUID       `json:"replaced_by,omitempty"`
	SourceURL    *string          `json:"source_url,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// VersionStatus represents the status of an instrument version
type VersionStatus string

const (
	VersionCurrent  VersionStatus = "current"
	VersionArchived VersionStatus = "archived"
)

// Version represents a time-bounded snapshot of an instrument's content.
// For a given instrument at most one version has ValidTo = nil, and version
// intervals never overlap.
type Version struct {
	ID           uuid.UUID     `json:"id"`
	InstrumentID uuid.UUID     `json:"instrument_id"`
	Ordinal      int           `json:"ordinal"`
	Status       VersionStatus `json:"status"`
	ValidFrom    time.Time     `json:"valid_from"`
	ValidTo      *time.Time    `json:"valid_to,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Unit represents an addressable sub-part of a version (typically an article).
// ContentHash is the hex SHA-256 of Content; a text change always produces a
// new unit in a new version, never an in-place edit.
type Unit struct {
	ID          uuid.UUID `json:"id"`
	VersionID   uuid.UUID `json:"version_id"`
	CitationKey string    `json:"citation_key"` // e.g. "art. 17"
	UnitType    string    `json:"unit_type"`    // "article", "paragraph"
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	IsKeyUnit   bool      `json:"is_key_unit"`
	CreatedAt   time.Time `json:"created_at"`
}

// StatusResolution is the answer to "is this instrument still good law".
// For a repealed instrument the replacement chain is walked to its end; Chain
// lists the traversed instrument ids in order, including the starting one.
type StatusResolution struct {
	InstrumentID  uuid.UUID        `json:"instrument_id"`
	Status        InstrumentStatus `json:"status"`
	CurrentID     uuid.UUID        `json:"current_id"`
	CurrentStatus InstrumentStatus `json:"current_status"`
	Chain         []uuid.UUID      `json:"chain"`
}
