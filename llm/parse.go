package llm

import (
	"encoding/json"
	"strings"
)

// ParsedVerdict is a successfully decoded audit answer. Anything that does
// not decode into exactly this shape is Malformed and must be treated as an
// uncertain verdict by the caller, never as true.
type ParsedVerdict struct {
	Verdict       string   `json:"verdict"`
	Confidence    float64  `json:"confidence"`
	EvidenceURLs  []string `json:"evidence_urls"`
	ObservedValue string   `json:"observed_value"`
	Reasoning     string   `json:"reasoning"`
}

// ParseVerdict decodes a raw provider answer strictly. Markdown fences and
// prose outside the outermost JSON object are tolerated as an envelope; the
// object itself must match the schema exactly. The boolean is false for any
// shape mismatch: wrong verdict token, out-of-range confidence, unknown or
// trailing fields, or no JSON at all.
func ParseVerdict(raw string) (ParsedVerdict, bool) {
	var parsed ParsedVerdict

	payload := stripFences(raw)
	payload = extractObject(payload)
	if payload == "" {
		return parsed, false
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return ParsedVerdict{}, false
	}
	if dec.More() {
		return ParsedVerdict{}, false
	}

	switch parsed.Verdict {
	case "true", "false", "uncertain":
	default:
		return ParsedVerdict{}, false
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return ParsedVerdict{}, false
	}

	return parsed, true
}

// stripFences removes a markdown code fence if the model wrapped its answer
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractObject narrows the payload to the outermost JSON object so that a
// short preamble ("Here is my answer:") does not defeat parsing. The object
// itself must still match the schema exactly.
func extractObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return ""
	}
	return s[start : end+1]
}
