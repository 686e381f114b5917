// Package store is the persistence gateway for conversations and messages.
// All multi-row writes run inside a single transaction so that the
// denormalized conversation summary always reflects the latest committed
// message; concurrent sends serialize on the database, not in process.
package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wanderlink/internal/config"
	"wanderlink/internal/model"
)

// ErrNotFound is returned when a point query matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrEditWindowExpired is returned when a message is edited too late.
var ErrEditWindowExpired = errors.New("store: edit window expired")

// EditWindow is how long a sender may edit a message after creating it.
const EditWindow = 15 * time.Minute

// Store wraps a GORM connection with the operations the messaging core
// needs.
type Store struct {
	db *gorm.DB
}

// New creates a Store on top of an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DSN builds the MySQL DSN from configuration.
func DSN(cfg config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// Connect opens a GORM connection to the configured MySQL database.
func Connect(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect to %s:%d/%s: %w", cfg.DBHost, cfg.DBPort, cfg.DBName, err)
	}
	return db, nil
}

// AllModels returns every GORM model owned by this service.
func AllModels() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Conversation{},
		&model.Message{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("store: auto-migrate: %w", err)
	}
	return nil
}
