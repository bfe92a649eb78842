// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/utils"
)

// Password satisfies the password strength rules.
const Password = "Secr3t!pass"

// NewDB returns a migrated and seeded in-memory database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := models.SeedDefaultData(db); err != nil {
		t.Fatalf("failed to seed test database: %v", err)
	}
	return db
}

// CreateUser inserts a user with Password as its password.
func CreateUser(t testing.TB, db *gorm.DB, email, role string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(Password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Email:          email,
		PasswordDigest: hash,
		Role:           role,
		FirstName:      "Test",
		LastName:       role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// CreateArtist inserts an artist profile for user, optionally managed by managerID.
func CreateArtist(t testing.TB, db *gorm.DB, user *models.User, managerID *uint) *models.Artist {
	t.Helper()

	artist := &models.Artist{UserID: user.ID, ManagerID: managerID}
	if err := db.Create(artist).Error; err != nil {
		t.Fatalf("failed to create artist: %v", err)
	}
	artist.User = user
	user.Artist = artist
	return artist
}
