package database_test

import (
	"testing"

	"etd-catalog/database"
	"etd-catalog/database/dbtest"
	"etd-catalog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// dryPostgres baut SQL für den Postgres-Dialekt, ohne eine Verbindung aufzubauen.
func dryPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=etd dbname=etd sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestLockAddsClauseOnPostgres(t *testing.T) {
	db := dryPostgres(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return database.Lock(tx, clause.LockingStrengthUpdate).First(&models.ClaimComment{}, "id = ?", 1)
	})
	assert.Contains(t, sql, "FOR UPDATE")

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var ids []uint
		return database.Lock(tx, clause.LockingStrengthShare).Model(&models.User{}).Where("id = ?", 1).Pluck("id", &ids)
	})
	assert.Contains(t, sql, "FOR SHARE")
}

func TestLockIsNoopOnSQLite(t *testing.T) {
	db := dbtest.New(t)
	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return database.Lock(tx, clause.LockingStrengthUpdate).First(&models.ClaimComment{}, "id = ?", 1)
	})
	assert.NotContains(t, sql, "FOR UPDATE")
	assert.Contains(t, sql, "claim_comments")
}
