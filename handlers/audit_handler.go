package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"lexaudit-backend/repository"
	"lexaudit-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler handles HTTP requests for audit verification and alerts
type AuditHandler struct {
	auditService *service.AuditService
	alerts       *repository.AlertRepository
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService, alerts *repository.AlertRepository) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		alerts:       alerts,
	}
}

// VerifyRequest represents the request body for an audit run. At least one
// selector must be set; claim_ids wins over text_id, text_id over incident_id.
type VerifyRequest struct {
	ClaimIDs   []string `json:"claim_ids"`
	TextID     string   `json:"text_id"`
	IncidentID string   `json:"incident_id"`
}

// Verify handles POST /api/audit/verify
func (h *AuditHandler) Verify(c *gin.Context) {
	var req VerifyRequest
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

	serviceReq := service.VerifyRequest{}
	for _, raw := range req.ClaimIDs {
		claimID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CLAIM_ID",
					"message": "Invalid claim id format: " + raw,
				},
			})
			return
		}
		serviceReq.ClaimIDs = append(serviceReq.ClaimIDs, claimID)
	}
	if req.TextID != "" {
		textID, err := uuid.Parse(req.TextID)
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
		serviceReq.TextID = &textID
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

	result, err := h.auditService.Verify(c.Request.Context(), serviceReq)
	if err != nil {
		status := http.StatusInternalServerError
		code := "VERIFY_FAILED"
		switch {
		case errors.Is(err, service.ErrNoSelector):
			status = http.StatusBadRequest
			code = "NO_SELECTOR"
		case errors.Is(err, service.ErrReferenceNotFound):
			status = http.StatusNotFound
			code = "CLAIMS_NOT_FOUND"
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"verified_count": result.Audited,
			"summary": gin.H{
				"true":      result.Audited - result.Refuted - result.Uncertain,
				"false":     result.Refuted,
				"uncertain": result.Uncertain,
			},
			"results": result.Reports,
			"skipped": result.Skipped,
			"alerts":  result.Alerts,
		},
	})
}

// ListAlerts handles GET /api/alerts
func (h *AuditHandler) ListAlerts(c *gin.Context) {
	var incidentID *uuid.UUID
	if raw := c.Query("incident_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
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
		incidentID = &parsed
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_LIMIT",
					"message": "limit must be a positive integer",
				},
			})
			return
		}
		limit = parsed
	}

	alerts, err := h.alerts.List(c.Request.Context(), incidentID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "LIST_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    alerts,
	})
}
