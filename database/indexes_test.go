package database_test

import (
	"testing"

	"backend_panelhub/database"
	"backend_panelhub/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePerformanceIndexes(t *testing.T) {
	db := testutils.MustSetupTestDB(t)

	// Повторный вызов не падает благодаря IF NOT EXISTS
	require.NoError(t, database.CreatePerformanceIndexes(db, nil))

	var names []string
	require.NoError(t, db.Raw("SELECT name FROM sqlite_master WHERE type = 'index'").Scan(&names).Error)
	for _, index := range database.PerformanceIndexes {
		assert.Contains(t, names, index.Name)
	}

	require.NoError(t, database.DropIndex(db, "idx_cuts_country_week"))
	assert.False(t, db.Migrator().HasIndex("cuts", "idx_cuts_country_week"))
}

func TestDatabaseIndex_SQL(t *testing.T) {
	index := database.DatabaseIndex{
		Name:    "idx_payments_currency_unlinked",
		Table:   "payments",
		Columns: []string{"currency", "paid_at"},
		Where:   "cut_id IS NULL",
	}
	assert.Equal(t,
		"CREATE INDEX IF NOT EXISTS idx_payments_currency_unlinked ON payments (currency, paid_at) WHERE cut_id IS NULL",
		index.SQL())

	index.Unique = true
	index.Where = ""
	assert.Equal(t,
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_currency_unlinked ON payments (currency, paid_at)",
		index.SQL())
}

func TestRateLimitKey(t *testing.T) {
	assert.Equal(t, "panelhub:ratelimit:user:operador", database.RateLimitKey("user:operador"))
}
