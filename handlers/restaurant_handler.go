package handlers

import (
	"log"
	"net/http"
	"strconv"

	"lunch-voting-backend/mq"
	"lunch-voting-backend/service"

	"github.com/gin-gonic/gin"
)

var eventBus *mq.EventBus

// InitHandler wires the event bus into the handlers. Called once at startup;
// handlers tolerate a nil bus (tests, degraded mode).
func InitHandler(bus *mq.EventBus) {
	eventBus = bus
	log.Println("event bus attached to handlers")
}

func publishEvent(eventType string, sessionID uint, userID string) {
	if eventBus == nil {
		return
	}
	if err := eventBus.Publish(eventType, sessionID, userID); err != nil {
		log.Printf("failed to publish %s event for session %d: %v", eventType, sessionID, err)
	}
}

// RestaurantInput defines the expected input for creating or updating a
// restaurant.
type RestaurantInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
}

// CreateRestaurant handles POST /api/restaurants.
func CreateRestaurant(c *gin.Context) {
	var input RestaurantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restaurant, err := service.CreateRestaurant(c.Request.Context(), service.RestaurantInput{
		Name:        input.Name,
		Description: input.Description,
		Address:     input.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, restaurant)
}

// ListRestaurants handles GET /api/restaurants. Pass ?include_inactive=true
// to include deactivated entries.
func ListRestaurants(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"
	restaurants, err := service.ListRestaurants(c.Request.Context(), includeInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurants)
}

// GetRestaurant handles GET /api/restaurants/:id.
func GetRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	restaurant, err := service.GetRestaurant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// UpdateRestaurant handles PUT /api/restaurants/:id.
func UpdateRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input RestaurantInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restaurant, err := service.UpdateRestaurant(c.Request.Context(), id, service.RestaurantInput{
		Name:        input.Name,
		Description: input.Description,
		Address:     input.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// DeactivateRestaurant handles DELETE /api/restaurants/:id. The restaurant
// is deactivated, not erased, so closed results keep their names; the
// request is refused while the restaurant sits in an active session.
func DeactivateRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := service.DeactivateRestaurant(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "restaurant deactivated"})
}

// ReactivateRestaurant handles POST /api/restaurants/:id/reactivate.
func ReactivateRestaurant(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	restaurant, err := service.ReactivateRestaurant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, restaurant)
}

// parseID reads the :id path parameter. Writes the 400 response itself so
// callers can just return on !ok.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ID format"})
		return 0, false
	}
	return uint(id), true
}
