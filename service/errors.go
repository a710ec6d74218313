package service

import "errors"

var (
	// ErrReferenceNotFound means the caller passed an unknown text or
	// incident id. Caller error, not retryable.
	ErrReferenceNotFound = errors.New("referenced text or incident not found")

	// ErrResolutionUnavailable means a corpus lookup failed. Retryable;
	// the affected batch builds zero claims.
	ErrResolutionUnavailable = errors.New("corpus resolution unavailable")

	// ErrNoSelector means a request named nothing to work on
	ErrNoSelector = errors.New("at least one selector (claim_ids, text_id or incident_id) is required")

	// ErrInstrumentNotFound means a corpus query named an unknown instrument
	ErrInstrumentNotFound = errors.New("instrument not found")

	// ErrUnitNotFound means no unit matches the citation key for the
	// requested version
	ErrUnitNotFound = errors.New("unit not found")

	// ErrReplacementCycle means an instrument replacement chain loops.
	// Traversal terminates with this diagnostic instead of spinning.
	ErrReplacementCycle = errors.New("instrument replacement chain contains a cycle")
)
