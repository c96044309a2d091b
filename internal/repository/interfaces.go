// Package repository defines data access interfaces for compressr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/compressr/internal/models"
)

// RunTotals aggregates lifetime transfer numbers across all runs.
type RunTotals struct {
	Runs            int64 `json:"runs"`
	OriginalBytes   int64 `json:"original_bytes"`
	CompressedBytes int64 `json:"compressed_bytes"`
}

// SavedBytes returns how many bytes compression saved in total.
func (t RunTotals) SavedBytes() int64 {
	return t.OriginalBytes - t.CompressedBytes
}

// RunRepository defines operations for run history persistence.
type RunRepository interface {
	// Create persists a finished run.
	Create(ctx context.Context, run *models.RunRecord) error
	// GetByID retrieves a run by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.RunRecord, error)
	// Recent retrieves the newest runs, most recent first.
	Recent(ctx context.Context, limit int) ([]*models.RunRecord, error)
	// RecentByUser retrieves the newest runs for one user, most recent first.
	RecentByUser(ctx context.Context, userID int64, limit int) ([]*models.RunRecord, error)
	// CountByStatus returns run counts grouped by terminal status.
	CountByStatus(ctx context.Context) (map[models.RunStatus]int64, error)
	// Totals aggregates byte counters over completed runs.
	Totals(ctx context.Context) (RunTotals, error)
	// DeleteOlderThan removes runs finished before the cutoff, returning
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
