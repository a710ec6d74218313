package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The services behind these handlers need a database; request validation
// rejects bad input before any service call, so it is testable without one.

func performJSON(t *testing.T, handler gin.HandlerFunc, method, route, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Handle(method, route, handler)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	return envelope.Error.Code
}

func TestDetectRejectsBadInput(t *testing.T) {
	h := NewDetectionHandler(nil)

	w := performJSON(t, h.Detect, http.MethodPost, "/api/detect", "/api/detect", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))

	w = performJSON(t, h.Detect, http.MethodPost, "/api/detect", "/api/detect", `{"text_id": "not-a-uuid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEXT_ID", errorCode(t, w))
}

func TestBuildClaimsRejectsBadInput(t *testing.T) {
	h := NewClaimHandler(nil)

	w := performJSON(t, h.BuildClaims, http.MethodPost, "/api/claims/build", "/api/claims/build", `{"text_id": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))

	body := `{"text_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "user_id": "nope"}`
	w = performJSON(t, h.BuildClaims, http.MethodPost, "/api/claims/build", "/api/claims/build", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_USER_ID", errorCode(t, w))

	body = `{"text_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "incident_id": "nope"}`
	w = performJSON(t, h.BuildClaims, http.MethodPost, "/api/claims/build", "/api/claims/build", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INCIDENT_ID", errorCode(t, w))
}

func TestVerifyRejectsBadInput(t *testing.T) {
	h := NewAuditHandler(nil, nil)

	w := performJSON(t, h.Verify, http.MethodPost, "/api/audit/verify", "/api/audit/verify", `{"claim_ids": ["nope"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CLAIM_ID", errorCode(t, w))

	w = performJSON(t, h.Verify, http.MethodPost, "/api/audit/verify", "/api/audit/verify", `{"text_id": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TEXT_ID", errorCode(t, w))
}

func TestCorpusHandlerRejectsBadInput(t *testing.T) {
	h := NewCorpusHandler(nil)

	w := performJSON(t, h.GetUnit, http.MethodGet, "/api/corpus/instruments/:id/units/:key", "/api/corpus/instruments/not-a-uuid/units/art.17", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))

	w = performJSON(t, h.ResolveStatus, http.MethodGet, "/api/corpus/instruments/:id/status", "/api/corpus/instruments/not-a-uuid/status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", errorCode(t, w))
}

func TestCreateTextRejectsBadInput(t *testing.T) {
	h := NewCorrespondenceHandler(nil)

	w := performJSON(t, h.CreateText, http.MethodPost, "/api/texts", "/api/texts", `{"body": "hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, w))

	body := `{"user_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "body": "hello", "received_at": "yesterday"}`
	w = performJSON(t, h.CreateText, http.MethodPost, "/api/texts", "/api/texts", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_RECEIVED_AT", errorCode(t, w))
}
