package handlers

import (
	"net/http"
	"time"

	"lexaudit-backend/models"
	"lexaudit-backend/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrespondenceHandler handles HTTP requests for correspondence texts
type CorrespondenceHandler struct {
	texts *repository.CorrespondenceRepository
}

// NewCorrespondenceHandler creates a new correspondence handler
func NewCorrespondenceHandler(texts *repository.CorrespondenceRepository) *CorrespondenceHandler {
	return &CorrespondenceHandler{texts: texts}
}

// CreateTextRequest represents the request body for registering correspondence
type CreateTextRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	IncidentID string `json:"incident_id"`
	Subject    string `json:"subject"`
	Body       string `json:"body" binding:"required"`
	Sender     string `json:"sender"`
	ReceivedAt string `json:"received_at"` // RFC 3339; defaults to now
}

// CreateText handles POST /api/texts
func (h *CorrespondenceHandler) CreateText(c *gin.Context) {
	var req CreateTextRequest
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

	text := &models.Correspondence{
		UserID:     userID,
		Subject:    req.Subject,
		Body:       req.Body,
		Sender:     req.Sender,
		ReceivedAt: time.Now(),
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
		text.IncidentID = &incidentID
	}

	if req.ReceivedAt != "" {
		receivedAt, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_RECEIVED_AT",
					"message": "received_at must be RFC 3339",
				},
			})
			return
		}
		text.ReceivedAt = receivedAt
	}

	if err := h.texts.Create(c.Request.Context(), text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    text,
	})
}

// GetText handles GET /api/texts/:id
func (h *CorrespondenceHandler) GetText(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid text ID format",
			},
		})
		return
	}

	text, err := h.texts.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "GET_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	if text == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Text not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    text,
	})
}
