package llm

import (
	"net/url"
	"strings"
)

// AllowList restricts audit evidence to authoritative legal-source domains.
// Matching is by host suffix so subdomains of an allowed domain pass.
type AllowList struct {
	domains []string
}

// NewAllowList builds an allow list from configured domains
func NewAllowList(domains []string) *AllowList {
	cleaned := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, "www.")
		if d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return &AllowList{domains: cleaned}
}

// DefaultAllowedDomains lists the official publication portals accepted as
// audit evidence when nothing is configured.
func DefaultAllowedDomains() []string {
	return []string{
		"fedlex.admin.ch",
		"admin.ch",
		"prestations.vd.ch",
		"vd.ch",
		"bger.ch",
		"lexfind.ch",
	}
}

// Domains returns the configured domain list
func (a *AllowList) Domains() []string {
	return a.domains
}

// IsAllowed reports whether a URL points at an allowed domain
func (a *AllowList) IsAllowed(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	host := strings.ToLower(parsed.Host)
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}
	host = strings.TrimPrefix(host, "www.")

	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Filter keeps only URLs on allowed domains, preserving order and dropping
// duplicates.
func (a *AllowList) Filter(urls []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range urls {
		if !a.IsAllowed(u) || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
