package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"lunch-voting-backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRestaurantEndpoint(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "POST", "/api/restaurants", "alice", gin.H{
		"name":        "Golden Wok",
		"description": "Cantonese classics",
		"address":     "12 Market St",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var created models.Restaurant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Golden Wok", created.Name)
	assert.True(t, created.IsActive)
	assert.NotZero(t, created.ID)
}

func TestCreateRestaurantMissingName(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "POST", "/api/restaurants", "alice", gin.H{"address": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRestaurantsFiltersInactive(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	active := seedRestaurant(t, db, "Golden Wok")
	inactive := seedRestaurant(t, db, "Closed Diner")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	w := doRequest(router, "GET", "/api/restaurants", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Restaurant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, active.ID, listed[0].ID)

	w = doRequest(router, "GET", "/api/restaurants?include_inactive=true", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 2)
}

func TestDeactivateRestaurantEndpoint(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	r1 := seedRestaurant(t, db, "Golden Wok")
	session := seedActiveSession(t, router, db, "alice", []uint{r1.ID}, 3)

	// Blocked while the restaurant is in an active session.
	w := doRequest(router, "DELETE", fmt.Sprintf("/api/restaurants/%d", r1.ID), "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(router, "POST", fmt.Sprintf("/api/sessions/%d/close", session.ID), "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "DELETE", fmt.Sprintf("/api/restaurants/%d", r1.ID), "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Closed results keep the restaurant's name despite deactivation.
	w = doRequest(router, "GET", fmt.Sprintf("/api/sessions/%d/results", session.ID), "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results struct {
		Totals []models.RestaurantTotal `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results.Totals, 1)
	assert.Equal(t, "Golden Wok", results.Totals[0].RestaurantName)

	w = doRequest(router, "POST", fmt.Sprintf("/api/restaurants/%d/reactivate", r1.ID), "alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var reactivated models.Restaurant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reactivated))
	assert.True(t, reactivated.IsActive)
}

func TestUpdateRestaurantEndpoint(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	r1 := seedRestaurant(t, db, "Golden Wok")

	w := doRequest(router, "PUT", fmt.Sprintf("/api/restaurants/%d", r1.ID), "alice", gin.H{
		"name":    "Golden Wok II",
		"address": "14 Market St",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Restaurant
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Golden Wok II", updated.Name)
	assert.Equal(t, "14 Market St", updated.Address)

	w = doRequest(router, "PUT", "/api/restaurants/99999", "alice", gin.H{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, db := SetupTestEnvironment(t)
	ClearTables(db)

	w := doRequest(router, "GET", "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
