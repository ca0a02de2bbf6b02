package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"lunch-voting-backend/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database connection. Tests swap it for an in-memory
// sqlite handle.
var DB *gorm.DB

// InitDB opens the MySQL connection and runs the schema migration.
func InitDB() error {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	dbUser := getEnv("DB_USER", "lunchvote")
	dbPassword := getEnv("DB_PASSWORD", "lunchvote")
	dbHost := getEnv("DB_HOST", "mysql")
	dbPort := getEnv("DB_PORT", "3306")
	dbName := getEnv("DB_NAME", "lunchvote")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbUser, dbPassword, dbHost, dbPort, dbName)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("failed to migrate models: %v", err)
	}

	if getEnv("ENVIRONMENT", "development") == "development" {
		createSampleData()
	}

	log.Println("database connection and migration ready")
	return nil
}

// Migrate runs the schema auto-migration for all entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Restaurant{},
		&models.VoteSession{},
		&models.VoteEntry{},
		&models.ResultSnapshot{},
	)
}

// createSampleData seeds a few restaurants in development mode so the
// frontend has something to show on a fresh database.
func createSampleData() {
	var count int64
	DB.Model(&models.Restaurant{}).Count(&count)
	if count > 0 {
		return
	}

	log.Println("seeding sample restaurants...")
	restaurants := []models.Restaurant{
		{Name: "Golden Wok", Description: "Cantonese classics", Address: "12 Market St", IsActive: true},
		{Name: "Trattoria Nonna", Description: "Hand-made pasta", Address: "48 Via Roma", IsActive: true},
		{Name: "Taco Norte", Description: "Baja-style tacos", Address: "301 5th Ave", IsActive: true},
		{Name: "Bento Box", Description: "Daily bento sets", Address: "77 Sakura Ln", IsActive: true},
	}
	if err := DB.Create(&restaurants).Error; err != nil {
		log.Printf("failed to seed sample restaurants: %v", err)
	}
}

// CloseDB closes the underlying sql connection.
func CloseDB() {
	if DB == nil {
		return
	}
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("failed to get database connection: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("failed to close database connection: %v", err)
		return
	}
	log.Println("database connection closed")
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
