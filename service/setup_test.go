package service

import (
	"context"
	"log"
	"testing"
	"time"

	"lunch-voting-backend/database"
	"lunch-voting-backend/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestEnvironment wires an in-memory SQLite database into the global
// database.DB and migrates the schema.
func SetupTestEnvironment(t *testing.T) *gorm.DB {
	t.Helper()

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
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

// ClearTables truncates all tables between tests.
func ClearTables(db *gorm.DB) {
	db.Exec("DELETE FROM vote_entries")
	db.Exec("DELETE FROM result_snapshots")
	db.Exec("DELETE FROM session_restaurants")
	db.Exec("DELETE FROM vote_sessions")
	db.Exec("DELETE FROM restaurants")
}

func createTestRestaurant(t *testing.T, db *gorm.DB, name string) models.Restaurant {
	t.Helper()
	restaurant := models.Restaurant{Name: name, IsActive: true}
	if err := db.Create(&restaurant).Error; err != nil {
		t.Fatalf("Failed to create restaurant %s: %v", name, err)
	}
	return restaurant
}

// createActiveSession creates a session with the given restaurants already
// attached and activated by its creator.
func createActiveSession(t *testing.T, creatorID string, restaurantIDs []uint, votesPerUser int) *models.VoteSession {
	t.Helper()
	ctx := context.Background()

	session, err := CreateSession(ctx, creatorID, CreateSessionInput{
		Title:         "Lunch today",
		VotesPerUser:  &votesPerUser,
		RestaurantIDs: restaurantIDs,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	session, err = ActivateSession(ctx, session.ID, creatorID)
	if err != nil {
		t.Fatalf("Failed to activate session: %v", err)
	}
	return session
}

// withFrozenClock pins the service clock for the duration of the test.
func withFrozenClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = prev })
}
