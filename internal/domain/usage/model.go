package usage

import "time"

// MaxAddressLength fits a textual IPv6 address.
const MaxAddressLength = 45

// AnonymousUsage meters scans from callers without an account, keyed by
// network address. The counter resets lazily once ResetDate has passed.
type AnonymousUsage struct {
	ID            uint      `gorm:"primaryKey"`
	IPAddress     string    `gorm:"size:45;not null;uniqueIndex:idx_anonymous_usages_ip_address"`
	ScanCount     int       `gorm:"not null;default:0"`
	FirstScanDate time.Time `gorm:"not null"`
	LastScanDate  time.Time `gorm:"not null"`
	ResetDate     time.Time `gorm:"not null"`
}

// Expired reports whether the period is over. The boundary instant itself
// still belongs to the old period.
func (u *AnonymousUsage) Expired(now time.Time) bool {
	return now.After(u.ResetDate)
}

// NextResetDate is one period after t.
func NextResetDate(t time.Time) time.Time {
	return t.AddDate(0, 1, 0)
}
