package db

import (
	"errors"
	"fmt"

	"comnet/internal/config"
	"comnet/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database and runs migrations.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite allows a single writer; one connection keeps transactions from
		// failing with "database is locked".
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Info().Str("driver", cfg.Driver).Msg("Database connection established")

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates every table this module owns.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.Network{},
		&models.User{},
		&models.Community{},
		&models.Post{},
		&models.Comment{},
		&models.Vote{},
		&models.NewsChannel{},
		&models.NewsItem{},
		&models.NewsSubscription{},
	)
	if err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Debug().Msg("Database migration completed")
	return nil
}

// SeedNetwork makes sure the default network row exists.
func SeedNetwork(conn *gorm.DB, id uuid.UUID) error {
	var network models.Network
	err := conn.First(&network, "id = ?", id).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load default network: %w", err)
	}

	network = models.Network{ID: id, Name: "COMNet", Domain: "localhost"}
	if err := conn.Create(&network).Error; err != nil {
		return fmt.Errorf("create default network: %w", err)
	}
	log.Info().Str("network_id", id.String()).Msg("Default network created")
	return nil
}
