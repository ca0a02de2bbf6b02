package handlers

import (
	"net/http"

	"lunch-voting-backend/mq"
	"lunch-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// CastVoteInput defines the expected input for casting a vote.
type CastVoteInput struct {
	RestaurantID uint `json:"restaurant_id" binding:"required"`
}

// CastVote handles POST /api/sessions/:id/votes. The vote's weight depends
// only on how many votes the caller already spent in this session.
func CastVote(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input CastVoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := service.CastVote(c.Request.Context(), id, currentUserID(c), input.RestaurantID)
	if err != nil {
		respondError(c, err)
		return
	}

	publishEvent(mq.EventVoteCast, id, currentUserID(c))
	c.JSON(http.StatusCreated, entry)
}

// MyVotes handles GET /api/sessions/:id/votes/me.
func MyVotes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, err := service.UserVotes(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// SessionVotes handles GET /api/sessions/:id/votes.
func SessionVotes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	entries, err := service.SessionVotes(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
