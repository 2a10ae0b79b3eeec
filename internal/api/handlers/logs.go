package handlers

import (
	"errors"
	"net/http"

	"github.com/JvSe/deep-logs/internal/api/middleware"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
)

// LogHandler handles device log ingestion and listing
type LogHandler struct {
	logService *services.LogService
}

// NewLogHandler creates a new LogHandler instance
func NewLogHandler(logService *services.LogService) *LogHandler {
	return &LogHandler{
		logService: logService,
	}
}

// CreateLog stores one event submitted by a device and updates its daily summary
// POST /api/logs
func (h *LogHandler) CreateLog(c *gin.Context) {
	var input services.LogInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadBody(c)
		return
	}
	if key, ok := middleware.GetDeviceKey(c); ok {
		input.Source = &key.Name
	}

	result, err := h.logService.Ingest(c.Request.Context(), input)
	if err != nil {
		respondError(c, "ingest log", err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListLogs returns one page of stored events
// GET /api/logs?page=&pageSize=&nameUser=&startDate=&endDate=
func (h *LogHandler) ListLogs(c *gin.Context) {
	query, err := services.ParseLogQuery(
		c.Query("page"),
		c.Query("pageSize"),
		c.Query("nameUser"),
		c.Query("startDate"),
		c.Query("endDate"),
	)
	if err != nil {
		respondError(c, "parse log query", err)
		return
	}

	page, err := h.logService.QueryLogs(c.Request.Context(), query)
	if err != nil {
		respondError(c, "query logs", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetLog returns a single event
// GET /api/logs/:id
func (h *LogHandler) GetLog(c *gin.Context) {
	entry, err := h.logService.GetLogByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrLogNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Log not found"})
			return
		}
		respondError(c, "get log", err)
		return
	}

	c.JSON(http.StatusOK, entry)
}
