// Package store persists the agent's auth token and assigned identity
// in a local SQLite database.
package store

import (
	"errors"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/serverpulse/agent/internal/observability/log"
)

// ErrTokenNotFound reports that no auth token has been saved yet.
var ErrTokenNotFound = errors.New("no token record")

// Credential is the persisted auth token row. A single row exists at
// most.
type Credential struct {
	ID    uint   `gorm:"primaryKey"`
	Token string `gorm:"not null"`
}

// Identity is the agent ID assigned by the control server at
// registration.
type Identity struct {
	ID      uint   `gorm:"primaryKey"`
	AgentID string `gorm:"not null"`
}

// Store wraps the database handle.
type Store struct {
	db     *gorm.DB
	logger log.Log
}

// Open creates the database directory if needed, opens the database,
// and migrates the tables.
func Open(path string, logger log.Log) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Credential{}, &Identity{}); err != nil {
		return nil, err
	}

	s := &Store{db: db, logger: logger.With(log.String("component", "store"))}
	s.logger.Debug("store opened", log.String("path", path))
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Token returns the saved auth token. Absence is reported as
// ErrTokenNotFound, distinct from a storage failure.
func (s *Store) Token() (string, error) {
	var cred Credential
	if err := s.db.First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTokenNotFound
		}
		return "", err
	}
	return cred.Token, nil
}

// SaveToken inserts or replaces the auth token.
func (s *Store) SaveToken(token string) error {
	var existing Credential
	err := s.db.First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(&Credential{Token: token}).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		existing.Token = token
		if err := s.db.Save(&existing).Error; err != nil {
			return err
		}
	}

	s.logger.Info("token saved")
	return nil
}

// AgentID returns the stored registration identity, or "" when the
// agent has not registered yet.
func (s *Store) AgentID() (string, error) {
	var ident Identity
	if err := s.db.First(&ident).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return ident.AgentID, nil
}

// SaveAgentID inserts or replaces the registration identity.
func (s *Store) SaveAgentID(agentID string) error {
	var existing Identity
	err := s.db.First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.db.Create(&Identity{AgentID: agentID}).Error
	case err != nil:
		return err
	default:
		existing.AgentID = agentID
		return s.db.Save(&existing).Error
	}
}
