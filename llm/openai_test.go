package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func chatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func TestOpenAIProviderAudit(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"verdict": "true", "confidence": 0.9, "reasoning": "consistent"}`))
	})

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", provider.Name())

	resp, err := provider.Audit(context.Background(), AuditRequest{
		ClaimText: "Le délai de recours est de 10 jours.",
		Sources: []CanonicalSource{
			{Abbreviation: "LEO", CitationKey: "art. 17", Content: "Le délai de recours est de 10 jours.", ContentHash: "abc123"},
		},
		AllowedDomains: []string{"fedlex.admin.ch"},
	})
	require.NoError(t, err)

	parsed, ok := ParseVerdict(resp.Raw)
	require.True(t, ok)
	assert.Equal(t, "true", parsed.Verdict)

	// The prompt must carry the claim, the canonical content with its hash,
	// and the domain restriction.
	require.Len(t, gotBody.Messages, 2)
	prompt := gotBody.Messages[1].Content
	assert.Contains(t, prompt, "Le délai de recours est de 10 jours.")
	assert.Contains(t, prompt, "[LEO art. 17]")
	assert.Contains(t, prompt, "abc123")
	assert.Contains(t, prompt, "fedlex.admin.ch")
	assert.Contains(t, prompt, "must NOT propose new legal provisions")
}

func TestOpenAIProviderAuditServerError(t *testing.T) {
	server := newChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
	})

	provider, err := NewOpenAIProvider(Config{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
	})
	require.NoError(t, err)

	_, err = provider.Audit(context.Background(), AuditRequest{ClaimText: "claim"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "audit API error"))
}

func TestOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider(Config{})
	assert.Error(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "mistral"})
	assert.Error(t, err)
}
