package handlers

import (
	"errors"
	"net/http"
	"time"

	"lexaudit-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorpusHandler handles HTTP requests for corpus queries
type CorpusHandler struct {
	corpusService *service.CorpusService
}

// NewCorpusHandler creates a new corpus handler
func NewCorpusHandler(corpusService *service.CorpusService) *CorpusHandler {
	return &CorpusHandler{corpusService: corpusService}
}

// SearchInstruments handles GET /api/corpus/instruments
func (h *CorpusHandler) SearchInstruments(c *gin.Context) {
	instruments, err := h.corpusService.Search(
		c.Request.Context(),
		c.Query("q"),
		c.Query("domain"),
		c.Query("jurisdiction"),
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEARCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    instruments,
	})
}

// GetUnit handles GET /api/corpus/instruments/:id/units/:key.
// An optional as_of=YYYY-MM-DD query selects the version valid on that date.
func (h *CorpusHandler) GetUnit(c *gin.Context) {
	instrumentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid instrument ID format",
			},
		})
		return
	}

	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_AS_OF",
					"message": "as_of must be YYYY-MM-DD",
				},
			})
			return
		}
		asOf = &parsed
	}

	unit, err := h.corpusService.GetUnit(c.Request.Context(), instrumentID, c.Param("key"), asOf)
	if err != nil {
		status := http.StatusInternalServerError
		code := "GET_FAILED"
		switch {
		case errors.Is(err, service.ErrInstrumentNotFound):
			status = http.StatusNotFound
			code = "INSTRUMENT_NOT_FOUND"
		case errors.Is(err, service.ErrUnitNotFound):
			status = http.StatusNotFound
			code = "UNIT_NOT_FOUND"
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
		"data":    unit,
	})
}

// ResolveStatus handles GET /api/corpus/instruments/:id/status
func (h *CorpusHandler) ResolveStatus(c *gin.Context) {
	instrumentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid instrument ID format",
			},
		})
		return
	}

	resolution, err := h.corpusService.ResolveStatus(c.Request.Context(), instrumentID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "STATUS_FAILED"
		switch {
		case errors.Is(err, service.ErrInstrumentNotFound):
			status = http.StatusNotFound
			code = "INSTRUMENT_NOT_FOUND"
		case errors.Is(err, service.ErrReplacementCycle):
			code = "REPLACEMENT_CYCLE"
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
		"data":    resolution,
	})
}
