package repository

import (
	"testing"

	"terrace/internal/database"
	"terrace/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user %s: %v", username, err)
	}
	return user
}

func createMatch(t *testing.T, db *gorm.DB, matchID string) *models.Match {
	t.Helper()
	match := &models.Match{
		MatchID:  matchID,
		HomeTeam: "Arsenal",
		AwayTeam: "Tottenham",
		Status:   "live",
	}
	if err := db.Create(match).Error; err != nil {
		t.Fatalf("Failed to create match %s: %v", matchID, err)
	}
	return match
}
