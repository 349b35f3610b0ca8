package users

import (
	"time"

	"ats-scanner/internal/domain/membership"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

type User struct {
	ID           uint    `gorm:"primaryKey"`
	Username     string  `gorm:"size:50;not null;uniqueIndex:idx_users_username"`
	Email        string  `gorm:"not null;uniqueIndex:idx_users_email"`
	PasswordHash *string `json:"-"`
	AuthProvider string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string `gorm:"uniqueIndex:idx_users_google_sub" json:"-"`
	Role         string  `gorm:"type:varchar(20);not null;default:'user'"`

	// Free-tier meter. Paid members are not metered.
	ScanCount    int `gorm:"not null;default:0"`
	LastScanDate *time.Time

	StripeCustomerID *string `gorm:"column:stripe_customer_id;uniqueIndex:idx_users_stripe_customer_id"`

	Membership *membership.Membership `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
