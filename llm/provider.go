package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the external search-augmented reasoning service used by the
// audit verifier. A provider may only judge claims the caller already built;
// nothing in this package can add instruments or units to the corpus.
type Provider interface {
	// Name returns the provider name (for report attribution)
	Name() string

	// Audit sends one audit query and returns the raw model output.
	// Transport failures are returned as errors; the caller downgrades
	// them to an uncertain verdict.
	Audit(ctx context.Context, req AuditRequest) (*AuditResponse, error)
}

// CanonicalSource is the database's current answer for one unit referenced
// by the claim, re-presented verbatim to the external service.
type CanonicalSource struct {
	Abbreviation string
	CitationKey  string
	Content      string
	ContentHash  string
	SourceURL    string
}

// AuditRequest carries one claim plus its canonical corpus content
type AuditRequest struct {
	ClaimText      string
	Sources        []CanonicalSource
	AllowedDomains []string
}

// AuditResponse is the raw provider output before strict parsing
type AuditResponse struct {
	Raw        string   // verbatim model content, archived for reviewers
	InlineURLs []string // citation URLs the service attached out of band
}

// Config holds provider configuration
type Config struct {
	Provider       string // "openai" (default) or "gemini"
	APIKey         string
	BaseURL        string // OpenAI-compatible endpoints only
	Model          string
	Timeout        int // seconds, per audit call
	AllowedDomains []string
}

// BuildAuditPrompt composes the audit query: the claim text, the canonical
// content with its hashes for reviewer transparency, and the source-domain
// restriction. The service is told it may only confirm, refute or abstain.
func BuildAuditPrompt(req AuditRequest) string {
	var b strings.Builder

	b.WriteString("You are auditing a legal claim against canonical database content.\n\n")
	b.WriteString("CLAIM UNDER AUDIT:\n")
	b.WriteString(req.ClaimText)
	b.WriteString("\n\nCANONICAL DATABASE CONTENT:\n")
	for _, src := range req.Sources {
		fmt.Fprintf(&b, "[%s %s] (content hash %s)\n%s\n\n", src.Abbreviation, src.CitationKey, src.ContentHash, src.Content)
	}

	b.WriteString("RULES:\n")
	b.WriteString("- Judge ONLY whether the claim is consistent with the official law as published today.\n")
	fmt.Fprintf(&b, "- Consult ONLY these authoritative domains: %s\n", strings.Join(req.AllowedDomains, ", "))
	b.WriteString("- You may answer true, false or uncertain. Nothing else.\n")
	b.WriteString("- You must NOT propose new legal provisions, instruments or articles.\n")
	b.WriteString("- If the claim states a value (a deadline, an amount) that differs from the official text, report the officially observed value.\n\n")
	b.WriteString("Answer with a single JSON object, no prose around it:\n")
	b.WriteString(`{"verdict": "true"|"false"|"uncertain", "confidence": 0.0-1.0, "evidence_urls": ["..."], "observed_value": "optional", "reasoning": "short"}`)
	b.WriteString("\n")

	return b.String()
}
