package database

import (
	"fmt"
	"time"

	"etd-catalog/config"
	"etd-catalog/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect öffnet die PostgreSQL-Verbindung des Katalogs.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Successfully connected to catalog database.", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return db, nil
}

// Migrate legt alle Tabellen des Katalogs an. withMetaTable steuert, ob die
// Metadaten-Tabelle für das Postgres-Suchbackend mit angelegt wird.
func Migrate(db *gorm.DB, withMetaTable bool) error {
	tables := []any{
		&models.User{},
		&models.EtdEntry{},
		&models.EtdDocument{},
		&models.ClaimComment{},
		&models.FavoriteEntry{},
		&models.LikedComment{},
		&models.DislikedComment{},
	}
	if withMetaTable {
		tables = append(tables, &models.EtdEntryMeta{})
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}
