package handlers

import (
	"net/http"

	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
)

// SummaryHandler serves the daily summaries
type SummaryHandler struct {
	summaryService *services.SummaryService
}

// NewSummaryHandler creates a new SummaryHandler instance
func NewSummaryHandler(summaryService *services.SummaryService) *SummaryHandler {
	return &SummaryHandler{
		summaryService: summaryService,
	}
}

// ListSummaries returns every daily summary, oldest first
// GET /api/logs/summary
func (h *SummaryHandler) ListSummaries(c *gin.Context) {
	summaries, err := h.summaryService.ListSummaries(c.Request.Context())
	if err != nil {
		respondError(c, "list summaries", err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

// Rebuild recomputes the summaries from stored logs
// POST /api/logs/summary/rebuild
func (h *SummaryHandler) Rebuild(c *gin.Context) {
	result, err := h.summaryService.Rebuild(c.Request.Context())
	if err != nil {
		respondError(c, "rebuild summaries", err)
		return
	}

	c.JSON(http.StatusOK, result)
}
