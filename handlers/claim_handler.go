package handlers

import (
	"errors"
	"net/http"

	"lexaudit-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClaimHandler handles HTTP requests for claim building
type ClaimHandler struct {
	claimService *service.ClaimService
}

// NewClaimHandler creates a new claim handler
func NewClaimHandler(claimService *service.ClaimService) *ClaimHandler {
	return &ClaimHandler{claimService: claimService}
}

// BuildClaimsRequest represents the request body for building claims.
// At least one of text_id and incident_id must be set; with only an
// incident_id, claims are built for every text of the incident.
type BuildClaimsRequest struct {
	TextID         string          `json:"text_id"`
	UserID         string          `json:"user_id" binding:"required"`
	IncidentID     string          `json:"incident_id"`
	AnalysisResult *AnalysisResult `json:"analysis_result"`
}

// AnalysisResult carries externally supplied assertions about the text.
// They receive no shortcut: each reference is resolved against the corpus
// before any claim is built from it.
type AnalysisResult struct {
	References []AssertedReference `json:"references"`
	Deadlines  []string            `json:"deadlines"`
	Procedures []string            `json:"procedures"`
}

// AssertedReference names a legal provision and the statement invoking it
type AssertedReference struct {
	Abbreviation string `json:"abbreviation" binding:"required"`
	CitationKey  string `json:"citation_key" binding:"required"`
	Statement    string `json:"statement"`
}

// BuildClaims handles POST /api/claims/build
func (h *ClaimHandler) BuildClaims(c *gin.Context) {
	var req BuildClaimsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	var textID uuid.UUID
	if req.TextID != "" {
		parsed, err := uuid.Parse(req.TextID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TEXT_ID",
					"message": "Invalid text_id format",
				},
			})
			return
		}
		textID = parsed
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_USER_ID",
				"message": "Invalid user_id format",
			},
		})
		return
	}

	serviceReq := service.BuildClaimsRequest{
		TextID: textID,
		UserID: userID,
	}
	if req.IncidentID != "" {
		incidentID, err := uuid.Parse(req.IncidentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_INCIDENT_ID",
					"message": "Invalid incident_id format",
				},
			})
			return
		}
		serviceReq.IncidentID = &incidentID
	}
	if req.AnalysisResult != nil {
		analysis := &service.AnalysisResult{
			Deadlines:  req.AnalysisResult.Deadlines,
			Procedures: req.AnalysisResult.Procedures,
		}
		for _, ref := range req.AnalysisResult.References {
			analysis.References = append(analysis.References, service.AssertedReference{
				Abbreviation: ref.Abbreviation,
				CitationKey:  ref.CitationKey,
				Statement:    ref.Statement,
			})
		}
		serviceReq.Analysis = analysis
	}

	result, err := h.claimService.BuildClaims(c.Request.Context(), serviceReq)
	if err != nil {
		status := http.StatusInternalServerError
		code := "BUILD_FAILED"
		switch {
		case errors.Is(err, service.ErrNoSelector):
			status = http.StatusBadRequest
			code = "NO_SELECTOR"
		case errors.Is(err, service.ErrReferenceNotFound):
			status = http.StatusNotFound
			code = "TEXT_NOT_FOUND"
		case errors.Is(err, service.ErrResolutionUnavailable):
			status = http.StatusServiceUnavailable
			code = "RESOLUTION_UNAVAILABLE"
		}
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	claimIDs := make([]uuid.UUID, 0, len(result.Claims))
	summaryByType := make(map[string]int)
	for _, claim := range result.Claims {
		claimIDs = append(claimIDs, claim.ID)
		summaryByType[string(claim.ClaimType)]++
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"claims_built":    len(result.Claims),
			"claims_blocked":  result.Blocked,
			"claim_ids":       claimIDs,
			"summary_by_type": summaryByType,
			"claims":          result.Claims,
			"blocked_reasons": result.BlockedReasons,
		},
	})
}
