package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
)

// AutoMigrateAll creates or extends the catalog tables. Existing catalogs only gain the
// queue bookkeeping columns on wikipedia_pages.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Document{},
		&types.IdentifierMapping{},
		&types.Predicate{},
	); err != nil {
		return err
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	// Claim scans walk unprocessed rows in id order.
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_wikipedia_pages_claimable
ON wikipedia_pages (id) WHERE state = 'unprocessed'`).Error
}
