package handlers

import (
	"net/http"
	"time"

	"lunch-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// SessionResults handles GET /api/sessions/:id/results. Live standings for
// active sessions, the frozen snapshot for closed ones.
func SessionResults(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	results, err := service.ComputeResults(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// ResultHistory handles GET /api/results/history with optional RFC3339
// from/to bounds on the close time.
func ResultHistory(c *gin.Context) {
	var from, to time.Time
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp"})
			return
		}
		to = parsed
	}

	results, err := service.ResultHistory(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
