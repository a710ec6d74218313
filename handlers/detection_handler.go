package handlers

import (
	"errors"
	"net/http"
	"time"

	"lexaudit-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DetectionHandler handles HTTP requests for citation detection
type DetectionHandler struct {
	detectionService *service.DetectionService
}

// NewDetectionHandler creates a new detection handler
func NewDetectionHandler(detectionService *service.DetectionService) *DetectionHandler {
	return &DetectionHandler{detectionService: detectionService}
}

// DetectRequest represents the request body for a detection pass. When
// subject and body are omitted the stored text is loaded by id. An optional
// date (RFC 3339 or YYYY-MM-DD) resolves citations against the versions
// valid on that date.
type DetectRequest struct {
	TextID  string `json:"text_id" binding:"required"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
}

// Detect handles POST /api/detect
func (h *DetectionHandler) Detect(c *gin.Context) {
	var req DetectRequest
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

	var date *time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.Date)
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_DATE",
					"message": "date must be RFC 3339 or YYYY-MM-DD",
				},
			})
			return
		}
		date = &parsed
	}

	result, err := h.detectionService.DetectText(c.Request.Context(), service.DetectTextRequest{
		TextID:  textID,
		Subject: req.Subject,
		Body:    req.Body,
		Sender:  req.Sender,
		Date:    date,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := "DETECTION_FAILED"
		switch {
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

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"summary":  result.Summary,
			"mentions": result.Mentions,
			"warnings": result.Warnings,
		},
	})
}
