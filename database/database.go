package database

import (
	"context"
	"fmt"

	"ats-scanner/internal/domain/billing"
	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/plans"
	"ats-scanner/internal/domain/scans"
	"ats-scanner/internal/domain/usage"
	"ats-scanner/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to Postgres. Query logging is left to gorm's default logger
// at warn level; request logging happens in the HTTP layer.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Models is every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		// core
		&users.User{},
		&users.LoginHistory{},
		&plans.Plan{},
		&membership.Membership{},
		&membership.History{},

		// metering
		&usage.AnonymousUsage{},
		&scans.Scan{},

		// billing
		&billing.Payment{},
		&billing.WebhookEvent{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SeedPlans inserts the default catalog. Existing rows keep their price ids
// and sale status; only descriptive columns are refreshed.
func SeedPlans(ctx context.Context, db *gorm.DB) error {
	catalog := plans.DefaultCatalog()
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price_usd", "scan_limit", "has_priority_support", "has_advanced_analytics", "has_bulk_upload"}),
		}).
		Create(&catalog).Error
	if err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}
