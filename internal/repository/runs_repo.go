package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/compressr/internal/models"
)

// defaultRecentLimit bounds list queries when the caller passes no limit.
const defaultRecentLimit = 20

// runRepository implements RunRepository using GORM.
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// Create persists a finished run.
func (r *runRepository) Create(ctx context.Context, run *models.RunRecord) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validating run record: %w", err)
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByID retrieves a run by ID.
func (r *runRepository) GetByID(ctx context.Context, id models.ULID) (*models.RunRecord, error) {
	var run models.RunRecord
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// Recent retrieves the newest runs, most recent first. ULIDs sort by
// creation time, so ordering on the primary key is enough.
func (r *runRepository) Recent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var runs []*models.RunRecord
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// RecentByUser retrieves the newest runs for one user, most recent first.
func (r *runRepository) RecentByUser(ctx context.Context, userID int64, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var runs []*models.RunRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// CountByStatus returns run counts grouped by terminal status.
func (r *runRepository) CountByStatus(ctx context.Context) (map[models.RunStatus]int64, error) {
	type row struct {
		Status models.RunStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.RunRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.RunStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Totals aggregates byte counters over completed runs.
func (r *runRepository) Totals(ctx context.Context) (RunTotals, error) {
	var totals RunTotals
	err := r.db.WithContext(ctx).
		Model(&models.RunRecord{}).
		Select("count(*) as runs, coalesce(sum(original_bytes), 0) as original_bytes, coalesce(sum(compressed_bytes), 0) as compressed_bytes").
		Where("status = ?", models.RunStatusCompleted).
		Scan(&totals).Error
	if err != nil {
		return RunTotals{}, err
	}
	return totals, nil
}

// DeleteOlderThan removes runs finished before the cutoff.
func (r *runRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("finished_at < ?", cutoff).
		Delete(&models.RunRecord{})
	return result.RowsAffected, result.Error
}
