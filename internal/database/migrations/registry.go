// Package migrations provides database migration management for compressr.
package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/compressr/internal/models"
)

// AllMigrations returns all registered migrations in order.
func AllMigrations() []Migration {
	return []Migration{
		migration001RunRecords(),
	}
}

// migration001RunRecords creates the run history table.
func migration001RunRecords() Migration {
	return Migration{
		Version:     "001",
		Description: "Create run_records table",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.RunRecord{})
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("run_records")
		},
	}
}
