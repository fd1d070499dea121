package database

import (
	"testing"

	"github.com/justsurfingit/job-outreach/internal/config"
	"github.com/justsurfingit/job-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	require.NoError(t, Migrate(db), "migrating twice is harmless")
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "mysql"}, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "unsupported database driver")
}
