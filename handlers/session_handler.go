package handlers

import (
	"net/http"
	"strconv"
	"time"

	"lunch-voting-backend/mq"
	"lunch-voting-backend/service"

	"github.com/gin-gonic/gin"
)

// CreateSessionInput defines the expected input for creating a session.
type CreateSessionInput struct {
	Title         string     `json:"title" binding:"required"`
	Description   string     `json:"description,omitempty"`
	VotesPerUser  *int       `json:"votes_per_user,omitempty"`
	AutoCloseAt   *time.Time `json:"auto_close_at,omitempty"`
	RestaurantIDs []uint     `json:"restaurant_ids,omitempty"`
}

// UpdateSessionInput defines the editable fields of a draft session.
type UpdateSessionInput struct {
	Title          *string    `json:"title,omitempty"`
	Description    *string    `json:"description,omitempty"`
	VotesPerUser   *int       `json:"votes_per_user,omitempty"`
	AutoCloseAt    *time.Time `json:"auto_close_at,omitempty"`
	ClearAutoClose bool       `json:"clear_auto_close,omitempty"`
}

// RestaurantIDsInput carries the restaurant ids for membership changes.
type RestaurantIDsInput struct {
	RestaurantIDs []uint `json:"restaurant_ids" binding:"required,min=1"`
}

// CreateSession handles POST /api/sessions.
func CreateSession(c *gin.Context) {
	var input CreateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := service.CreateSession(c.Request.Context(), currentUserID(c), service.CreateSessionInput{
		Title:         input.Title,
		Description:   input.Description,
		VotesPerUser:  input.VotesPerUser,
		AutoCloseAt:   input.AutoCloseAt,
		RestaurantIDs: input.RestaurantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /api/sessions with optional status, mine, page
// and page_size query parameters.
func ListSessions(c *gin.Context) {
	filter := service.ListSessionsFilter{
		Status: c.Query("status"),
	}
	if c.Query("mine") == "true" {
		filter.CreatorID = currentUserID(c)
	}
	filter.Page = queryInt(c, "page", 1)
	filter.PageSize = queryInt(c, "page_size", 20)

	sessions, total, err := service.ListSessions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
	})
}

// GetSession handles GET /api/sessions/:id.
func GetSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	session, err := service.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// UpdateSession handles PATCH /api/sessions/:id. Draft only, creator only.
func UpdateSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input UpdateSessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := service.UpdateSession(c.Request.Context(), id, currentUserID(c), service.UpdateSessionInput{
		Title:          input.Title,
		Description:    input.Description,
		VotesPerUser:   input.VotesPerUser,
		AutoCloseAt:    input.AutoCloseAt,
		ClearAutoClose: input.ClearAutoClose,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// AddSessionRestaurants handles POST /api/sessions/:id/restaurants.
func AddSessionRestaurants(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input RestaurantIDsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := service.AddRestaurants(c.Request.Context(), id, currentUserID(c), input.RestaurantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// RemoveSessionRestaurants handles DELETE /api/sessions/:id/restaurants.
func RemoveSessionRestaurants(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input RestaurantIDsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := service.RemoveRestaurants(c.Request.Context(), id, currentUserID(c), input.RestaurantIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ActivateSession handles POST /api/sessions/:id/activate.
func ActivateSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	session, err := service.ActivateSession(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	publishEvent(mq.EventSessionActivated, session.ID, currentUserID(c))
	c.JSON(http.StatusOK, session)
}

// CloseSession handles POST /api/sessions/:id/close.
func CloseSession(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	session, err := service.CloseSession(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	publishEvent(mq.EventSessionClosed, session.ID, currentUserID(c))
	c.JSON(http.StatusOK, session)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value := c.Query(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
