package quota

// Reason explains a denied scan.
type Reason string

const (
	ReasonLimitReached Reason = "limit_reached"
	ReasonUserNotFound Reason = "user_not_found"
)

// UnlimitedScans is reported as RemainingScans for paid members.
const UnlimitedScans = -1

// Decision is the answer to "may this caller scan now". RemainingScans is
// the count left after the scan about to happen, floored at zero.
type Decision struct {
	CanScan           bool   `json:"can_scan"`
	RemainingScans    int    `json:"remaining_scans"`
	IsFirstTime       bool   `json:"is_first_time"`
	HasPaidMembership bool   `json:"has_active_membership"`
	MembershipType    string `json:"membership_type"`
	ScanCount         int    `json:"scan_count"`
	Reason            Reason `json:"reason,omitempty"`
}

// Unlimited reports whether the caller is not metered.
func (d Decision) Unlimited() bool {
	return d.RemainingScans == UnlimitedScans
}

// freeTier applies the metered rule: permitted while used < limit, and the
// reported remainder already counts the pending scan.
func freeTier(limit, used int) Decision {
	remaining := limit - used
	d := Decision{
		CanScan:        remaining > 0,
		RemainingScans: max(0, remaining-1),
		ScanCount:      used,
	}
	if !d.CanScan {
		d.Reason = ReasonLimitReached
	}
	return d
}
