package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/compressr/internal/config"
)

func sqliteConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      ":memory:",
		LogLevel: "silent",
	}
}

func TestNew_SQLite(t *testing.T) {
	db, err := New(sqliteConfig(), nil)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Driver())
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Driver = "oracle"

	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestNew_Stats(t *testing.T) {
	db, err := New(sqliteConfig(), nil)
	require.NoError(t, err)
	defer db.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Contains(t, stats, "open_connections")
	assert.Contains(t, stats, "in_use")
}

func TestNew_SQLiteJournalMode(t *testing.T) {
	db, err := New(sqliteConfig(), nil)
	require.NoError(t, err)
	defer db.Close()

	// The DSN carries the PRAGMAs so every pooled connection gets them.
	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.NotEmpty(t, mode)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Warn, gormLogLevel("warn"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel("bogus"))
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := strings.Repeat("x", maxSQLLogLength+50)
	got := truncateSQL(long)
	assert.Len(t, got, maxSQLLogLength+len("... (truncated)"))
	assert.True(t, strings.HasSuffix(got, "... (truncated)"))
}
