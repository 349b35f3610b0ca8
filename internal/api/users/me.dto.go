package users

import "time"

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
	Access  AccessDTO  `json:"access"`
	Usage   UsageDTO   `json:"usage"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	AuthProvider string    `json:"auth_provider"`
	HasPassword  bool      `json:"has_password"`
	CreatedAt    time.Time `json:"created_at"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	Plan         *PlanDTO         `json:"plan"`
	Subscription *SubscriptionDTO `json:"subscription"`
}

type PlanDTO struct {
	ID        uint    `json:"id"`
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Price     float64 `json:"price"`
	ScanLimit int     `json:"scan_limit"`
}

type SubscriptionDTO struct {
	Type                 string     `json:"type"`
	Source               string     `json:"source"`
	IsActive             bool       `json:"is_active"`
	Expired              bool       `json:"expired"`
	StartDate            *time.Time `json:"start_date"`
	EndDate              *time.Time `json:"end_date"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	CanCancel            bool       `json:"can_cancel"`
}

/* ---------- ACCESS ---------- */

type AccessDTO struct {
	State        string   `json:"state"` // free|member|expired
	Plan         string   `json:"plan"`
	ScanMode     string   `json:"scan_mode"` // metered|unlimited
	Capabilities []string `json:"capabilities"`
}

/* ---------- USAGE ---------- */

type UsageDTO struct {
	CanScan        bool       `json:"can_scan"`
	ScanCount      int        `json:"scan_count"`
	RemainingScans int        `json:"remaining_scans"`
	LastScanDate   *time.Time `json:"last_scan_date"`
}
