package handlers

import (
	"log"
	"testing"

	"lunch-voting-backend/database"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestEnvironment sets up the Gin router and in-memory SQLite database
// for testing.
func SetupTestEnvironment(t *testing.T) (*gin.Engine, *gorm.DB) {
	testing.Init()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	database.DB = db
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	t.Cleanup(func() {
		ClearTables(db)
		sqlDB, _ := database.DB.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	// Setup Router
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-User-ID"}
	router.Use(cors.New(config))

	// Same routes as routes.SetupRouter, without the background sweeper.
	api := router.Group("/api")
	{
		api.GET("/health", HealthCheck)

		authed := api.Group("")
		authed.Use(RequireUser())
		{
			authed.POST("/restaurants", CreateRestaurant)
			authed.GET("/restaurants", ListRestaurants)
			authed.GET("/restaurants/:id", GetRestaurant)
			authed.PUT("/restaurants/:id", UpdateRestaurant)
			authed.DELETE("/restaurants/:id", DeactivateRestaurant)
			authed.POST("/restaurants/:id/reactivate", ReactivateRestaurant)

			authed.POST("/sessions", CreateSession)
			authed.GET("/sessions", ListSessions)
			authed.GET("/sessions/:id", GetSession)
			authed.PATCH("/sessions/:id", UpdateSession)
			authed.POST("/sessions/:id/restaurants", AddSessionRestaurants)
			authed.DELETE("/sessions/:id/restaurants", RemoveSessionRestaurants)
			authed.POST("/sessions/:id/activate", ActivateSession)
			authed.POST("/sessions/:id/close", CloseSession)

			authed.POST("/sessions/:id/votes", CastVote)
			authed.GET("/sessions/:id/votes", SessionVotes)
			authed.GET("/sessions/:id/votes/me", MyVotes)
			authed.GET("/sessions/:id/results", SessionResults)

			authed.GET("/results/history", ResultHistory)
		}
	}

	return router, db
}

// ClearTables truncates all tables between tests.
func ClearTables(db *gorm.DB) {
	db.Exec("DELETE FROM vote_entries")
	db.Exec("DELETE FROM result_snapshots")
	db.Exec("DELETE FROM session_restaurants")
	db.Exec("DELETE FROM vote_sessions")
	db.Exec("DELETE FROM restaurants")
}
