package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// respondError writes validation errors with their itemized fields and
// hides everything else behind an opaque 500. The underlying error goes to
// the operator log only.
func respondError(c *gin.Context, op string, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid payload",
			Details: verr.Fields,
		})
		return
	}

	log.Printf("[API] %s %s: %s failed: %v", c.Request.Method, c.Request.URL.Path, op, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: "internal error",
	})
}

// respondBadBody reports a body that could not be decoded
func respondBadBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: "invalid payload",
		Details: []services.FieldError{
			{Field: "body", Message: "request body must be a JSON object with correctly typed fields"},
		},
	})
}
