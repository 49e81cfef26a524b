package repository

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens the orchestrator's own store under dataDir and
// migrates the schema. An empty dataDir yields an in-memory store,
// which tests rely on.
func NewSQLiteDB(dataDir string) (*gorm.DB, error) {
	dsn := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, err
		}
		dsn = filepath.Join(dataDir, "shipd.db")
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Environment{}, &Release{}, &MigrationRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}
