// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ats-scanner/database"
	"ats-scanner/internal/domain/plans"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=UTC", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedPlans loads the default catalog and returns it keyed by type.
func SeedPlans(t testing.TB, db *gorm.DB) map[plans.Type]plans.Plan {
	t.Helper()
	require.NoError(t, database.SeedPlans(context.Background(), db))

	var rows []plans.Plan
	require.NoError(t, db.Find(&rows).Error)

	out := make(map[plans.Type]plans.Plan, len(rows))
	for _, p := range rows {
		out[p.Type] = p
	}
	return out
}

// BindPrice attaches a provider price id to the catalog entry of type typ.
func BindPrice(t testing.TB, db *gorm.DB, typ plans.Type, priceID string) {
	t.Helper()
	require.NoError(t, db.Model(&plans.Plan{}).Where("type = ?", typ).Update("stripe_price_id", priceID).Error)
}
