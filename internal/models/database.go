package models

import (
	"fmt"

	"github.com/huangang/soundvault/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the configured database. verbose turns on SQL logging.
func InitDB(cfg *config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	logLevel := logger.Warn
	if verbose {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Genre{},
		&Artist{},
		&Album{},
		&Music{},
		&SystemConfig{},
		&SystemLog{},
	)
}

// SeedDefaultData creates default system configs if not exists
func SeedDefaultData(db *gorm.DB) error {
	defaultConfigs := []SystemConfig{
		{Key: "auth_access_token_ttl_minutes", Value: "", Type: "int", Group: "auth", Label: "Access Token TTL (minutes, empty = config file)"},
		{Key: "auth_refresh_token_ttl_hours", Value: "", Type: "int", Group: "auth", Label: "Refresh Token TTL (hours, empty = config file)"},
		{Key: "user_phone_region", Value: "US", Type: "string", Group: "auth", Label: "Default Phone Number Region"},
		{Key: "email_enabled", Value: "false", Type: "bool", Group: "email", Label: "Enable Email Delivery"},
		{Key: "email_smtp_host", Value: "", Type: "string", Group: "email", Label: "SMTP Host"},
		{Key: "email_smtp_port", Value: "587", Type: "int", Group: "email", Label: "SMTP Port"},
		{Key: "email_username", Value: "", Type: "string", Group: "email", Label: "SMTP Username"},
		{Key: "email_password", Value: "", Type: "string", Group: "email", Label: "SMTP Password"},
		{Key: "email_use_tls", Value: "false", Type: "bool", Group: "email", Label: "Implicit TLS (port 465)"},
		{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "Sender Address"},
		{Key: "email_app_url", Value: "http://localhost:3000", Type: "string", Group: "email", Label: "Frontend URL in Emails"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
