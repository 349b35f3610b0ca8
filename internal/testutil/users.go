package testutil

import (
	"fmt"
	"testing"
	"time"

	"ats-scanner/internal/domain/membership"
	"ats-scanner/internal/domain/users"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewUser inserts a local account with the given free-tier counter.
func NewUser(t testing.TB, db *gorm.DB, scanCount int) users.User {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&users.User{}).Count(&n).Error)

	u := users.User{
		Username:     fmt.Sprintf("user%d", n+1),
		Email:        fmt.Sprintf("user%d@example.com", n+1),
		AuthProvider: users.ProviderLocal,
		Role:         users.RoleUser,
		ScanCount:    scanCount,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// GiveMembership stores m for userID, filling in the owner.
func GiveMembership(t testing.TB, db *gorm.DB, userID uint, m membership.Membership) membership.Membership {
	t.Helper()
	m.UserID = userID
	require.NoError(t, db.Create(&m).Error)
	return m
}

// LoadMembership reads the current membership row of userID.
func LoadMembership(t testing.TB, db *gorm.DB, userID uint) membership.Membership {
	t.Helper()
	var m membership.Membership
	require.NoError(t, db.Where("user_id = ?", userID).First(&m).Error)
	return m
}

func Ptr[T any](v T) *T { return &v }

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
