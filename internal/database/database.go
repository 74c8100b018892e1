package database

import (
	"fmt"

	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

// NewDatabase opens a connection using the configured driver and performs
// auto-migration. dsn overrides cfg.DSN when non-empty; for sqlserver it is
// assembled from key vault secrets by the caller.
func NewDatabase(cfg *config.Database, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = cfg.DSN
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlserver":
		dialector = sqlserver.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates the history tables when they do not exist yet. All
// tables are append-only, so no destructive migration is performed.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Trade{},
		&models.MarketSnapshot{},
		&models.Balance{},
		&models.DailyHighPrice{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SQLServerDSN builds an Azure SQL connection string from vault-provided
// credentials and the configured database name.
func SQLServerDSN(server, username, password, database string) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s?database=%s", username, password, server, database)
}
